package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"time"

	"github.com/wardenhq/warden/internal/model"
)

// Builtin implements the stateless, no-filesystem tool family: time.now,
// math.eval, and the desktop.app.* stubs standing in for a real desktop
// automation backend.
type Builtin struct {
	// Apps is the fixed inventory the desktop.app.list/activate stubs
	// report against.
	Apps []string
}

// NewBuiltin returns a Builtin backend with a small deterministic app list.
func NewBuiltin() *Builtin {
	return &Builtin{Apps: []string{"Finder", "Terminal", "Notes", "Calculator"}}
}

func (b *Builtin) Execute(ctx context.Context, call model.ToolCall) (model.ToolResult, error) {
	switch call.Name {
	case "time.now":
		return b.timeNow(call)
	case "math.eval":
		return b.mathEval(call)
	case "desktop.app.list":
		return b.appList(call)
	case "desktop.app.activate":
		return b.appActivate(call)
	default:
		return model.ToolResult{}, fmt.Errorf("builtin backend cannot execute %q", call.Name)
	}
}

func (b *Builtin) timeNow(call model.ToolCall) (model.ToolResult, error) {
	now := time.Now().UTC()
	return okResult(call.Name, map[string]any{
		"status":          "ok",
		"unix_seconds":    now.Unix(),
		"rfc3339":         now.Format(time.RFC3339),
	}, "read current time")
}

func (b *Builtin) mathEval(call model.ToolCall) (model.ToolResult, error) {
	var args struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(call.ArgumentsJSON, &args); err != nil {
		return errorResult(call.Name, "invalid_arguments"), nil
	}
	value, err := evalArithmetic(args.Expression)
	if err != nil {
		return errorResult(call.Name, "invalid_expression"), nil
	}
	return okResult(call.Name, map[string]any{"status": "ok", "result": value}, "evaluated expression")
}

// evalArithmetic parses and evaluates a numeric Go expression (+ - * / and
// parentheses only). Reusing go/parser/go/ast keeps this read-only: no
// identifiers or calls are permitted, so there is no code-execution surface.
func evalArithmetic(expr string) (float64, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("parse expression: %w", err)
	}
	return evalNode(node)
}

func evalNode(node ast.Expr) (float64, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, fmt.Errorf("unsupported literal")
		}
		var v float64
		if _, err := fmt.Sscanf(n.Value, "%g", &v); err != nil {
			return 0, fmt.Errorf("parse literal: %w", err)
		}
		return v, nil
	case *ast.ParenExpr:
		return evalNode(n.X)
	case *ast.UnaryExpr:
		v, err := evalNode(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.SUB:
			return -v, nil
		case token.ADD:
			return v, nil
		default:
			return 0, fmt.Errorf("unsupported operator")
		}
	case *ast.BinaryExpr:
		left, err := evalNode(n.X)
		if err != nil {
			return 0, err
		}
		right, err := evalNode(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return left + right, nil
		case token.SUB:
			return left - right, nil
		case token.MUL:
			return left * right, nil
		case token.QUO:
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return left / right, nil
		default:
			return 0, fmt.Errorf("unsupported operator")
		}
	default:
		return 0, fmt.Errorf("unsupported expression")
	}
}

func (b *Builtin) appList(call model.ToolCall) (model.ToolResult, error) {
	return okResult(call.Name, map[string]any{"status": "ok", "apps": b.Apps}, "listed desktop apps")
}

func (b *Builtin) appActivate(call model.ToolCall) (model.ToolResult, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(call.ArgumentsJSON, &args); err != nil {
		return errorResult(call.Name, "invalid_arguments"), nil
	}
	found := false
	for _, app := range b.Apps {
		if app == args.Name {
			found = true
			break
		}
	}
	if !found {
		return errorResult(call.Name, "app_not_found"), nil
	}
	return okResult(call.Name, map[string]any{"status": "ok", "activated": args.Name},
		"activated "+args.Name)
}
