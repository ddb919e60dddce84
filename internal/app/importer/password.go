package importer

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const minPasswordLength = 4

var passwordClasses = []string{
	"abcdefghijkmnopqrstuvwxyz",
	"ABCDEFGHJKLMNPQRSTUVWXYZ",
	"23456789",
	"!$%&*+-?@#",
}

// GeneratePassword returns a random password of length characters holding at
// least one lower-case letter, upper-case letter, digit and special character.
func GeneratePassword(length int) (string, error) {
	if length < minPasswordLength {
		return "", fmt.Errorf("password length %d below minimum %d", length, minPasswordLength)
	}

	var all string
	for _, c := range passwordClasses {
		all += c
	}

	buf := make([]byte, length)
	for i := range buf {
		set := all
		if i < len(passwordClasses) {
			set = passwordClasses[i]
		}
		n, err := randInt(len(set))
		if err != nil {
			return "", err
		}
		buf[i] = set[n]
	}

	// Fisher-Yates so the guaranteed classes are not always in front.
	for i := len(buf) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf), nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("generate password: %w", err)
	}
	return int(v.Int64()), nil
}
