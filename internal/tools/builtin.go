package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	mcp "github.com/mark3labs/mcp-go/mcp"
)

// RegisterBuiltins installs the tools the stock tool server ships with.
func RegisterBuiltins(r *Registry) {
	r.Register(Tool{
		Descriptor: mcp.NewTool("calculator",
			mcp.WithDescription("Evaluate a basic arithmetic expression of two operands."),
			mcp.WithString("operation",
				mcp.Required(),
				mcp.Description("One of add, subtract, multiply, divide."),
			),
			mcp.WithNumber("a", mcp.Required(), mcp.Description("Left operand.")),
			mcp.WithNumber("b", mcp.Required(), mcp.Description("Right operand.")),
		),
		Handle: calculator,
	})

	r.Register(Tool{
		Descriptor: mcp.NewTool("current_time",
			mcp.WithDescription("Return the current UTC time, optionally in a named IANA timezone."),
			mcp.WithString("timezone", mcp.Description("IANA timezone name, e.g. Europe/Berlin.")),
		),
		Handle: currentTime,
	})
}

func numberArg(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q is not a number", key)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("argument %q is not a number", key)
	}
}

func calculator(_ context.Context, args map[string]any) (any, error) {
	op, _ := args["operation"].(string)
	a, err := numberArg(args, "a")
	if err != nil {
		return nil, err
	}
	b, err := numberArg(args, "b")
	if err != nil {
		return nil, err
	}

	var result float64
	switch strings.ToLower(op) {
	case "add":
		result = a + b
	case "subtract":
		result = a - b
	case "multiply":
		result = a * b
	case "divide":
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		result = a / b
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	return map[string]float64{"result": result}, nil
}

func currentTime(_ context.Context, args map[string]any) (any, error) {
	loc := time.UTC
	if tz, ok := args["timezone"].(string); ok && tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", tz)
		}
		loc = parsed
	}
	now := time.Now().In(loc)
	return map[string]string{
		"time":     now.Format(time.RFC3339),
		"timezone": loc.String(),
	}, nil
}
