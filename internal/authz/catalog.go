package authz

// Wildcard is the literal used for resource or action wildcards in stored
// permissions ("client:*", "*:*").
const Wildcard = "*"

// Resource names for every grantable capability.
const (
	ResourceOrganization      = "organization"
	ResourceMember            = "member"
	ResourceRole              = "role"
	ResourceClient            = "client"
	ResourceInvoice           = "invoice"
	ResourceQuote             = "quote"
	ResourceBudget            = "budget"
	ResourceScenario          = "scenario"
	ResourcePaymentCredential = "payment_credential"
	ResourceAudit             = "audit"
)

// Common action names.
const (
	ActionRead    = "read"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionSend    = "send"
	ActionAccept  = "accept"
	ActionInvite  = "invite"
	ActionSuspend = "suspend"
	ActionRemove  = "remove"
)

// Catalog maps every resource to its defined actions. This is the static
// permission catalog seeded into storage.
var Catalog = map[string][]string{
	ResourceOrganization:      {ActionRead, ActionUpdate, ActionDelete},
	ResourceMember:            {ActionRead, ActionInvite, ActionUpdate, ActionSuspend, ActionRemove},
	ResourceRole:              {ActionRead, ActionUpdate},
	ResourceClient:            {ActionRead, ActionCreate, ActionUpdate, ActionDelete},
	ResourceInvoice:           {ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionSend},
	ResourceQuote:             {ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionSend, ActionAccept},
	ResourceBudget:            {ActionRead, ActionCreate, ActionUpdate, ActionDelete},
	ResourceScenario:          {ActionRead, ActionCreate, ActionUpdate, ActionDelete},
	ResourcePaymentCredential: {ActionRead, ActionCreate, ActionUpdate, ActionDelete},
	ResourceAudit:             {ActionRead},
}

// System role names, ordered by grant breadth.
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleEditor  = "editor"
	RoleViewer  = "viewer"
)

// SystemRole describes one seeded role and its grants. Grants use the
// "resource:action" string form, including wildcard entries; each system
// role's grant set is a strict superset of the next one down.
type SystemRole struct {
	Name     string
	Priority int
	Grants   []string
}

// SystemRoles is the seed catalog for the five built-in roles.
var SystemRoles = []SystemRole{
	{
		Name:     RoleOwner,
		Priority: 100,
		Grants:   []string{"*:*"},
	},
	{
		Name:     RoleAdmin,
		Priority: 80,
		Grants: []string{
			"organization:read", "organization:update",
			"member:*", "role:*",
			"client:*", "invoice:*", "quote:*",
			"budget:*", "scenario:*",
			"payment_credential:*",
			"audit:read",
		},
	},
	{
		Name:     RoleManager,
		Priority: 60,
		Grants: []string{
			"organization:read", "member:read",
			"client:*", "invoice:*", "quote:*",
			"budget:*", "scenario:*",
			"audit:read",
		},
	},
	{
		Name:     RoleEditor,
		Priority: 40,
		Grants: []string{
			"organization:read", "member:read",
			"client:read", "client:create", "client:update",
			"invoice:read", "invoice:create", "invoice:update", "invoice:send",
			"quote:read", "quote:create", "quote:update", "quote:send",
			"budget:read", "budget:create", "budget:update",
			"scenario:read", "scenario:create", "scenario:update",
		},
	},
	{
		Name:     RoleViewer,
		Priority: 20,
		Grants: []string{
			"organization:read", "member:read",
			"client:read", "invoice:read", "quote:read",
			"budget:read", "scenario:read",
		},
	},
}
