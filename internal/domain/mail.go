package domain

const (
	MailTypeCreateUser         = "create_user"
	MailTypeAllocationFinished = "allocation_finished"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type AllocationFinishedMailData struct {
	RunID            string  `json:"runID"`
	Status           string  `json:"status"`
	Fitness          float64 `json:"fitness"`
	Generations      int     `json:"generations"`
	AssignedOrders   int     `json:"assignedOrders"`
	UnassignedOrders int     `json:"unassignedOrders"`
	Message          string  `json:"message"`
}
