// Package roller implements the dice roller: request/result correlation
// over the bus and a status file driving the UI's roll button.
package roller

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// Expression is a parsed dice expression: a number of dice, each with a
// given face count, plus a flat base modifier. "2d6+3" parses to
// Faces=[6,6], Base=3.
type Expression struct {
	Faces []int
	Base  int
}

var diceTermRe = regexp.MustCompile(`^(\d*)d(\d+)$`)

// ParseExpression parses a whitespace-insensitive dice expression of the
// form "<N>d<F>[+/-<base>]", e.g. "3d8-1", "d20", "2d6+3".
func ParseExpression(expr string) (Expression, error) {
	s := strings.ToLower(strings.ReplaceAll(expr, " ", ""))
	if s == "" {
		return Expression{}, fmt.Errorf("roller: empty dice expression")
	}

	sign := 1
	baseStart := -1
	for i := len(s) - 1; i > 0; i-- {
		if s[i] == '+' || s[i] == '-' {
			baseStart = i
			if s[i] == '-' {
				sign = -1
			}
			break
		}
	}

	dicePart := s
	base := 0
	if baseStart >= 0 {
		dicePart = s[:baseStart]
		n, err := strconv.Atoi(s[baseStart+1:])
		if err != nil {
			return Expression{}, fmt.Errorf("roller: invalid modifier in %q: %w", expr, err)
		}
		base = sign * n
	}

	m := diceTermRe.FindStringSubmatch(dicePart)
	if m == nil {
		return Expression{}, fmt.Errorf("roller: invalid dice term %q", dicePart)
	}
	count := 1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Expression{}, fmt.Errorf("roller: invalid dice count in %q: %w", expr, err)
		}
		count = n
	}
	faceSize, err := strconv.Atoi(m[2])
	if err != nil || faceSize < 1 {
		return Expression{}, fmt.Errorf("roller: invalid face size in %q", dicePart)
	}
	if count < 1 {
		return Expression{}, fmt.Errorf("roller: dice count must be ≥ 1 in %q", expr)
	}

	faces := make([]int, count)
	for i := range faces {
		faces[i] = faceSize
	}
	return Expression{Faces: faces, Base: base}, nil
}

// Roll evaluates the expression, rolling every die with a cryptographically
// sourced RNG, and returns each die's result alongside the final total.
func (e Expression) Roll() (rolls []int, total int) {
	rolls = make([]int, len(e.Faces))
	for i, f := range e.Faces {
		rolls[i] = rollDie(f)
		total += rolls[i]
	}
	total += e.Base
	return rolls, total
}

func rollDie(faces int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(faces)))
	if err != nil {
		return 1
	}
	return int(n.Int64()) + 1
}
