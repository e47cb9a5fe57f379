package coretools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/mikan/convo/pkg/tool"
)

// Calculator evaluates arithmetic expressions with + - * / and parentheses.
type Calculator struct{}

func (c *Calculator) Name() string { return "calculator" }

func (c *Calculator) Description() string {
	return "Evaluates an arithmetic expression. Supports +, -, *, / and parentheses."
}

func (c *Calculator) Params() []tool.Param {
	return []tool.Param{
		{
			Name:        "expression",
			Type:        "string",
			Description: "The arithmetic expression to evaluate, e.g. \"15 * 27\"",
			Required:    true,
		},
	}
}

func (c *Calculator) Execute(ctx context.Context, args map[string]any) (any, error) {
	expression, _ := args["expression"].(string)
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("expression cannot be empty")
	}

	value, err := evaluate(expression)
	if err != nil {
		return nil, err
	}

	return formatNumber(value), nil
}

// formatNumber renders integers without a decimal point.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenOperator
	tokenLeftParen
	tokenRightParen
)

type token struct {
	kind  tokenKind
	value float64
	op    byte
}

// opNegate is the internal operator for unary minus. It binds tighter
// than * and / so "2 * -3" groups as 2 * (-3).
const opNegate byte = 'n'

// evaluate parses and computes an infix expression via shunting-yard.
func evaluate(expression string) (float64, error) {
	tokens, err := tokenize(expression)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, fmt.Errorf("expression cannot be empty")
	}

	var output []token
	var operators []token

	precedence := func(op byte) int {
		switch op {
		case '+', '-':
			return 1
		case '*', '/':
			return 2
		case opNegate:
			return 3
		}
		return 0
	}

	for _, tok := range tokens {
		switch tok.kind {
		case tokenNumber:
			output = append(output, tok)
		case tokenOperator:
			// Negation is right-associative: stacked unary minuses must
			// not pop each other.
			for tok.op != opNegate && len(operators) > 0 {
				top := operators[len(operators)-1]
				if top.kind != tokenOperator || precedence(top.op) < precedence(tok.op) {
					break
				}
				output = append(output, top)
				operators = operators[:len(operators)-1]
			}
			operators = append(operators, tok)
		case tokenLeftParen:
			operators = append(operators, tok)
		case tokenRightParen:
			matched := false
			for len(operators) > 0 {
				top := operators[len(operators)-1]
				operators = operators[:len(operators)-1]
				if top.kind == tokenLeftParen {
					matched = true
					break
				}
				output = append(output, top)
			}
			if !matched {
				return 0, fmt.Errorf("unbalanced parentheses")
			}
		}
	}

	for len(operators) > 0 {
		top := operators[len(operators)-1]
		operators = operators[:len(operators)-1]
		if top.kind == tokenLeftParen {
			return 0, fmt.Errorf("unbalanced parentheses")
		}
		output = append(output, top)
	}

	// Evaluate RPN.
	var stack []float64
	for _, tok := range output {
		if tok.kind == tokenNumber {
			stack = append(stack, tok.value)
			continue
		}
		if tok.op == opNegate {
			if len(stack) < 1 {
				return 0, fmt.Errorf("malformed expression")
			}
			stack[len(stack)-1] = -stack[len(stack)-1]
			continue
		}
		if len(stack) < 2 {
			return 0, fmt.Errorf("malformed expression")
		}
		b := stack[len(stack)-1]
		a := stack[len(stack)-2]
		stack = stack[:len(stack)-2]

		var v float64
		switch tok.op {
		case '+':
			v = a + b
		case '-':
			v = a - b
		case '*':
			v = a * b
		case '/':
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v = a / b
		}
		stack = append(stack, v)
	}

	if len(stack) != 1 {
		return 0, fmt.Errorf("malformed expression")
	}
	return stack[0], nil
}

func tokenize(expression string) ([]token, error) {
	var tokens []token
	i := 0

	for i < len(expression) {
		ch := expression[i]

		switch {
		case ch == ' ' || ch == '\t':
			i++
		case ch >= '0' && ch <= '9' || ch == '.':
			j := i
			for j < len(expression) && (expression[j] >= '0' && expression[j] <= '9' || expression[j] == '.') {
				j++
			}
			value, err := strconv.ParseFloat(expression[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", expression[i:j])
			}
			tokens = append(tokens, token{kind: tokenNumber, value: value})
			i = j
		case ch == '+' || ch == '*' || ch == '/':
			tokens = append(tokens, token{kind: tokenOperator, op: ch})
			i++
		case ch == '-':
			// Unary minus when at the start or after an operator or '('.
			unary := len(tokens) == 0 ||
				tokens[len(tokens)-1].kind == tokenOperator ||
				tokens[len(tokens)-1].kind == tokenLeftParen
			op := byte('-')
			if unary {
				op = opNegate
			}
			tokens = append(tokens, token{kind: tokenOperator, op: op})
			i++
		case ch == '(':
			tokens = append(tokens, token{kind: tokenLeftParen})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokenRightParen})
			i++
		default:
			if unicode.IsLetter(rune(ch)) {
				return nil, fmt.Errorf("unsupported symbol %q", string(ch))
			}
			return nil, fmt.Errorf("unexpected character %q", string(ch))
		}
	}

	return tokens, nil
}
