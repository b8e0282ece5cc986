package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// CodeTTL is how long an emailed login code stays valid.
const CodeTTL = 5 * time.Minute

const (
	codeMin = 100000
	codeMax = 999999
)

var codeSpan = big.NewInt(codeMax - codeMin + 1)

// newCode returns a six digit code drawn uniformly from [100000, 999999].
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", fmt.Errorf("failed to generate login code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

func codeMailSubject(appName string) string {
	return fmt.Sprintf("[%s] Login verification code", appName)
}

func codeMailBody(code string) string {
	return fmt.Sprintf("Your login verification code is %s. It is valid for %d minutes. Do not share it with anyone.",
		code, int(CodeTTL/time.Minute))
}
