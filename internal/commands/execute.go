package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Add    func(AddArgs) (Result, error)
	Start  func(StartArgs) (Result, error)
	Stop   func() (Result, error)
	Import func() (Result, error)
	Goal   func(GoalArgs) (Result, error)
	Clear  func() (Result, error)
	Day    func(DayArgs) (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeAdd:
		if handlers.Add == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "add handler not configured"}
		}
		return handlers.Add(*cmd.Add)
	case TypeStart:
		if handlers.Start == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "start handler not configured"}
		}
		return handlers.Start(*cmd.Start)
	case TypeStop:
		if handlers.Stop == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "stop handler not configured"}
		}
		return handlers.Stop()
	case TypeImport:
		if handlers.Import == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "import handler not configured"}
		}
		return handlers.Import()
	case TypeGoal:
		if handlers.Goal == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "goal handler not configured"}
		}
		return handlers.Goal(*cmd.Goal)
	case TypeClear:
		if handlers.Clear == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "clear handler not configured"}
		}
		return handlers.Clear()
	case TypeDay:
		if handlers.Day == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "day handler not configured"}
		}
		return handlers.Day(*cmd.Day)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}
