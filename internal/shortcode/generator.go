// Package shortcode allocates collision-free short codes, with the store's
// uniqueness constraint as the final arbiter.
package shortcode

import (
	"crypto/rand"
	"errors"
	"math/big"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// Charset holds every character a code may contain.
	Charset = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// CodeLength is the length of generated codes.
	CodeLength = 8
	// MaxAttempts bounds the generate-and-probe loop.
	MaxAttempts = 10
)

// ErrCodeExhausted is returned when no free code was found within
// MaxAttempts. The caller fails creation hard; no partial link is persisted.
var ErrCodeExhausted = errors.New("shortcode: could not allocate a unique code")

// Generator hands out codes that are unique among stored links.
type Generator struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// NewGenerator creates a code generator backed by the link store.
func NewGenerator(db *gorm.DB, logger *zap.SugaredLogger) *Generator {
	return &Generator{db: db, logger: logger.Named("shortcode")}
}

// NewCode generates a random code and probes the store for collisions, up to
// MaxAttempts times. A duplicate-key error on the subsequent insert counts as
// one more collision: callers retry NewCode rather than treating it as fatal.
func (g *Generator) NewCode() (string, error) {
	for i := 0; i < MaxAttempts; i++ {
		code, err := randomCode(CodeLength)
		if err != nil {
			return "", err
		}
		exists, err := g.codeExists(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	g.logger.Warnw("code space probe exhausted", "attempts", MaxAttempts)
	return "", ErrCodeExhausted
}

func (g *Generator) codeExists(code string) (bool, error) {
	var count int64
	if err := g.db.Table("links").Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// randomCode draws characters from a cryptographically secure source.
func randomCode(length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(Charset)))
	for i := range b {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = Charset[num.Int64()]
	}
	return string(b), nil
}
