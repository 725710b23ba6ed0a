package handler

type ContextKey string

var (
	RoleCtxKey       ContextKey = "role"
	SubCtxKey        ContextKey = "sub"
	MyInfoCtx        ContextKey = "myInfo"
	UserInfoCtx      ContextKey = "userInfo"
	OperatorCtx      ContextKey = "operator"
	ServiceOrderCtx  ContextKey = "serviceOrder"
	AllocationRunCtx ContextKey = "allocationRun"
)
