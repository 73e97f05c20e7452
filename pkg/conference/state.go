package conference

import "fmt"

// State состояние описания конференции
type State int

const (
	// StateNew только что созданная конференция, ни разу не редактировалась
	StateNew State = iota
	// StateUpdated содержимое менялось после создания
	StateUpdated
	// StateCancelled конференция отменена. Терминальное состояние.
	StateCancelled
)

var stateNames = map[State]string{
	StateNew:       "New",
	StateUpdated:   "Updated",
	StateCancelled: "Cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState обратное к String
func ParseState(s string) (State, error) {
	for state, name := range stateNames {
		if name == s {
			return state, nil
		}
	}
	return StateNew, fmt.Errorf("conference: unknown state %q", s)
}

// validTransitions матрица допустимых переходов. Переход в то же
// состояние проверяется отдельно и всегда разрешен.
var validTransitions = map[State]map[State]bool{
	StateNew: {
		StateUpdated:   true,
		StateCancelled: true,
	},
	StateUpdated: {
		StateCancelled: true,
	},
	// Из Cancelled переходов нет
}

func validateTransition(from, to State) error {
	if from == to {
		return nil
	}
	if from == StateCancelled {
		return ErrInfoCancelled
	}
	if validTransitions[from][to] {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, from, to)
}
