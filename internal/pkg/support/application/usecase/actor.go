package usecase

import (
	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

// ActorKind says how a caller was authenticated.
type ActorKind string

const (
	ActorGuest    ActorKind = "GUEST"
	ActorCustomer ActorKind = "CUSTOMER"
	ActorEmployee ActorKind = "EMP"
	// ActorSystem is used by background tasks; it is never produced by the HTTP layer.
	ActorSystem ActorKind = "SYSTEM"
)

// Actor is the authenticated caller. ID is the customer or employee id; guests have none
// and prove access by knowing the conversation id, which is their token.
type Actor struct {
	Kind ActorKind
	ID   string
}

func Guest() Actor             { return Actor{Kind: ActorGuest} }
func Customer(id string) Actor { return Actor{Kind: ActorCustomer, ID: id} }
func Employee(id string) Actor { return Actor{Kind: ActorEmployee, ID: id} }
func System() Actor            { return Actor{Kind: ActorSystem} }

func (a Actor) IsEmployee() bool { return a.Kind == ActorEmployee && a.ID != "" }

func (a Actor) privileged() bool { return a.IsEmployee() || a.Kind == ActorSystem }

func (a Actor) owns(c support.Conversation) bool {
	switch a.Kind {
	case ActorCustomer:
		return a.ID != "" && c.Customer.CustomerID == a.ID
	case ActorGuest:
		return c.Customer.IsGuest()
	}
	return false
}

// canAccess reports whether a may read c or write to it as its customer.
func (a Actor) canAccess(c support.Conversation) bool {
	return a.privileged() || a.owns(c)
}

// role is the sender role a message from a is stored with.
func (a Actor) role() support.SenderRole {
	switch a.Kind {
	case ActorEmployee:
		return support.RoleEmployee
	case ActorSystem:
		return support.RoleSystem
	}
	return support.RoleCustomer
}
