package tools

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Typed calculator failures. Anything else the evaluator reports wraps
// ErrInvalidExpression.
var (
	ErrInvalidExpression = errors.New("invalid expression")
	ErrDivisionByZero    = errors.New("division by zero")
)

// Evaluate computes an arithmetic expression supporting + - * / % ** ^ and
// parentheses, and returns the formatted result. The caller treats this as
// an opaque capability: a result string or a typed failure.
func Evaluate(expression string) (string, error) {
	expr := strings.ReplaceAll(expression, " ", "")
	expr = strings.ReplaceAll(expr, "x", "*")
	expr = strings.ReplaceAll(expr, "÷", "/")
	if expr == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidExpression)
	}
	for _, r := range expr {
		if !strings.ContainsRune("0123456789+-*/().%^", r) {
			return "", fmt.Errorf("%w: character %q", ErrInvalidExpression, r)
		}
	}

	p := &exprParser{input: expr}
	value, err := p.parseSum()
	if err != nil {
		return "", err
	}
	if p.pos != len(p.input) {
		return "", fmt.Errorf("%w: trailing input at %d", ErrInvalidExpression, p.pos)
	}
	return FormatResult(value), nil
}

// FormatResult renders an integral value without a decimal point and
// anything else with up to six decimals, trailing zeros trimmed.
func FormatResult(value float64) string {
	if value == math.Trunc(value) && math.Abs(value) < 1e15 {
		return strconv.FormatInt(int64(value), 10)
	}
	s := strconv.FormatFloat(value, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.input) {
		return p.input[p.pos]
	}
	return 0
}

func (p *exprParser) parseSum() (float64, error) {
	left, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.peek() == '*' && p.pos+1 < len(p.input) && p.input[p.pos+1] == '*':
			// ** is handled by parsePower below the unary level.
			return left, nil
		case p.peek() == '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.peek() == '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left /= right
		case p.peek() == '%':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.peek() == '-' {
		p.pos++
		value, err := p.parseUnary()
		return -value, err
	}
	return p.parsePower()
}

// parsePower handles ** and ^, right associative.
func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	if p.peek() == '^' {
		p.pos++
	} else if p.peek() == '*' && p.pos+1 < len(p.input) && p.input[p.pos+1] == '*' {
		p.pos += 2
	} else {
		return base, nil
	}
	exp, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *exprParser) parseAtom() (float64, error) {
	if p.peek() == '(' {
		p.pos++
		value, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing )", ErrInvalidExpression)
		}
		p.pos++
		return value, nil
	}

	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("%w: expected number at %d", ErrInvalidExpression, start)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", ErrInvalidExpression, p.input[start:p.pos])
	}
	return value, nil
}
