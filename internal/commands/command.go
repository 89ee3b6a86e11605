// Package commands parses the command palette input into typed commands.
package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Type string

const (
	TypeAdd    Type = "add"
	TypeStart  Type = "start"
	TypeStop   Type = "stop"
	TypeImport Type = "import"
	TypeGoal   Type = "goal"
	TypeClear  Type = "clear"
	TypeDay    Type = "day"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type AddArgs struct {
	Name string
}

type StartArgs struct {
	Target string
}

type GoalArgs struct {
	Slot int
	Text string
}

type DayArgs struct {
	When  time.Time
	Today bool
}

type Command struct {
	Type  Type
	Raw   string
	Add   *AddArgs
	Start *StartArgs
	Goal  *GoalArgs
	Day   *DayArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(input, args)
	case TypeStart:
		return parseStart(input, args)
	case TypeStop:
		return Command{Type: TypeStop, Raw: input}, nil
	case TypeImport:
		return Command{Type: TypeImport, Raw: input}, nil
	case TypeGoal:
		return parseGoal(input, args)
	case TypeClear:
		return Command{Type: TypeClear, Raw: input}, nil
	case TypeDay:
		return parseDay(input, args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseAdd(raw string, args []string) (Command, error) {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "add requires a task name"}
	}
	return Command{Type: TypeAdd, Raw: raw, Add: &AddArgs{Name: name}}, nil
}

func parseStart(raw string, args []string) (Command, error) {
	target := strings.TrimSpace(strings.Join(args, " "))
	if target == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "start requires a task name or id"}
	}
	return Command{Type: TypeStart, Raw: raw, Start: &StartArgs{Target: target}}, nil
}

func parseGoal(raw string, args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "goal requires a slot (1-6) and text"}
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil || slot < 1 || slot > 6 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid goal slot: %s", args[0])}
	}
	text := strings.TrimSpace(strings.Join(args[1:], " "))
	return Command{Type: TypeGoal, Raw: raw, Goal: &GoalArgs{Slot: slot - 1, Text: text}}, nil
}

func parseDay(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "day requires a date or 'today'"}
	}
	if strings.EqualFold(args[0], "today") {
		return Command{Type: TypeDay, Raw: raw, Day: &DayArgs{Today: true}}, nil
	}
	when, err := time.ParseInLocation("2006-01-02", args[0], time.Local)
	if err != nil {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid date: %s", args[0])}
	}
	return Command{Type: TypeDay, Raw: raw, Day: &DayArgs{When: when}}, nil
}
