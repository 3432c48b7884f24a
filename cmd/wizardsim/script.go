package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/davidroman0O/gowizard"
)

// command is one entry of a navigation script.
type command struct {
	op  string
	arg string
}

func (c command) String() string {
	if c.arg == "" {
		return c.op
	}
	return c.op + ":" + c.arg
}

// parseScript parses a comma separated script such as
// "next,skip,prev,goto:billing,goto:#0,set:terms=true,unset:city,reset,destroy".
//
// goto takes a step id. A leading '#' selects a step by index instead, so
// "goto:2" targets the step whose id is "2" and "goto:#2" the third step.
func parseScript(script string) ([]command, error) {
	var cmds []command
	for _, raw := range strings.Split(script, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}
		op, arg, _ := strings.Cut(token, ":")
		c := command{op: strings.ToLower(op), arg: arg}

		switch c.op {
		case "next", "skip", "prev", "reset", "destroy":
			if c.arg != "" {
				return nil, fmt.Errorf("command %q takes no argument", c.op)
			}
		case "goto":
			if c.arg == "" || c.arg == "#" {
				return nil, fmt.Errorf("goto needs a step id or #index")
			}
			if rest, ok := strings.CutPrefix(c.arg, "#"); ok {
				if _, err := strconv.Atoi(rest); err != nil {
					return nil, fmt.Errorf("goto: invalid index %q", rest)
				}
			}
		case "set":
			key, _, ok := strings.Cut(c.arg, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("set needs key=value, got %q", c.arg)
			}
		case "unset":
			if c.arg == "" {
				return nil, fmt.Errorf("unset needs a key")
			}
		default:
			return nil, fmt.Errorf("unknown command %q", token)
		}
		cmds = append(cmds, c)
	}
	return cmds, nil
}

// apply runs c against engine. set and unset edit the form data the
// validators read, which is the engine store.
func (c command) apply(ctx context.Context, engine *gowizard.Engine) error {
	switch c.op {
	case "next":
		return engine.Next(ctx)
	case "skip":
		return engine.Skip()
	case "prev":
		return engine.Previous()
	case "reset":
		return engine.Reset()
	case "destroy":
		engine.Destroy()
		return nil
	case "goto":
		if rest, ok := strings.CutPrefix(c.arg, "#"); ok {
			index, err := strconv.Atoi(rest)
			if err != nil {
				return fmt.Errorf("goto: invalid index %q", rest)
			}
			return engine.GoTo(ctx, index)
		}
		return engine.GoToID(ctx, c.arg)
	case "set":
		key, raw, _ := strings.Cut(c.arg, "=")
		if err := checkFormKey(engine, key); err != nil {
			return err
		}
		var value interface{}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return engine.Store().Put(key, value)
	case "unset":
		if err := checkFormKey(engine, c.arg); err != nil {
			return err
		}
		engine.Store().Delete(c.arg)
		return nil
	}
	return fmt.Errorf("unknown command %q", c.op)
}

// checkFormKey refuses keys owned by the status board.
func checkFormKey(engine *gowizard.Engine, key string) error {
	if system, err := engine.Store().HasTag(key, gowizard.TagSystem); err == nil && system {
		return fmt.Errorf("key %q belongs to the status board", key)
	}
	return nil
}
