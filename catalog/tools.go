package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ggoodman/mcp-stdio-go/mcpservice"
)

type echoArgs struct {
	Text string `json:"text" jsonschema_description:"Text to echo back"`
}

type getTimeArgs struct {
	Format string `json:"format,omitempty" jsonschema:"enum=iso,enum=locale,enum=timestamp,default=iso" jsonschema_description:"Format for the time (iso, locale, or timestamp)"`
}

type calculateArgs struct {
	Expression string `json:"expression" jsonschema_description:"Mathematical expression to evaluate (e.g. \"2 + 3 * 4\")"`
}

const (
	isoLayout    = "2006-01-02T15:04:05.000Z"
	localeLayout = "1/2/2006, 3:04:05 PM"
)

func (c *Catalog) tools() []mcpservice.StaticTool {
	return []mcpservice.StaticTool{
		mcpservice.NewTool("echo", echo, mcpservice.WithToolDescription("Echo back the input text")),
		mcpservice.NewTool("get_time", c.getTime, mcpservice.WithToolDescription("Get current date and time")),
		mcpservice.NewTool("calculate", calculate, mcpservice.WithToolDescription("Perform basic arithmetic calculations")),
	}
}

func echo(ctx context.Context, w mcpservice.ToolResponseWriter, args echoArgs) error {
	return w.AppendText("Echo: " + args.Text)
}

// getTime falls back to ISO for unrecognized formats but still labels the
// output with the format that was asked for.
func (c *Catalog) getTime(ctx context.Context, w mcpservice.ToolResponseWriter, args getTimeArgs) error {
	now := c.now()
	var s string
	switch args.Format {
	case "locale":
		s = now.Local().Format(localeLayout)
	case "timestamp":
		s = strconv.FormatInt(now.UnixMilli(), 10)
	default:
		s = now.UTC().Format(isoLayout)
	}
	label := args.Format
	if label == "" {
		label = "iso"
	}
	return w.AppendText(fmt.Sprintf("Current time (%s): %s", label, s))
}

func calculate(ctx context.Context, w mcpservice.ToolResponseWriter, args calculateArgs) error {
	v, err := Evaluate(args.Expression)
	if err != nil {
		w.SetError(true)
		return w.AppendText("Error evaluating expression: " + err.Error())
	}
	return w.AppendText(fmt.Sprintf("Result: %s = %s", args.Expression, FormatNumber(v)))
}
