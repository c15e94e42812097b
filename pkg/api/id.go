package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	queryIDPrefix  = "qry_"
	figureIDPrefix = "fig_"
)

var queryIDPattern = regexp.MustCompile(`^qry_[a-zA-Z0-9]{24}$`)

// NewQueryID generates a new query ID with the "qry_" prefix followed
// by 24 cryptographically random alphanumeric characters.
func NewQueryID() string {
	return queryIDPrefix + randomAlphanumeric(idLength)
}

// NewFigureID generates a new figure artifact ID with the "fig_" prefix.
func NewFigureID() string {
	return figureIDPrefix + randomAlphanumeric(idLength)
}

// ValidateQueryID checks whether the given string is a valid query ID
// (matches "qry_" + 24 alphanumeric characters).
func ValidateQueryID(id string) bool {
	return queryIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
