package booking

// Phase описывает состояние команды оркестратора.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseValidating         Phase = "validating"
	PhaseSubmitting         Phase = "submitting"
	PhaseReconcilingSuccess Phase = "reconciling_success"
	PhaseReconcilingFailure Phase = "reconciling_failure"
)

// Command задаёт имя команды в логах и метриках.
type Command string

const (
	CommandCreateService Command = "create_service"
	CommandCreateSlot    Command = "create_slot"
	CommandCreateBooking Command = "create_booking"
)

// PhaseObserver получает переходы состояний команды.
type PhaseObserver func(cmd Command, phase Phase)
