// Package authz implements the relationship-aware authorization engine.
// Decisions combine role compatibility, school scoping and relationship
// traversal; the engine performs no I/O of its own and depends only on the
// RelationshipGraph capability for traversal checks.
package authz

import (
	"context"

	"go.uber.org/zap"

	"github.com/thutoworks/thuto-api/internal/models"
)

// Action enumerates the decisions the engine can make.
type Action string

const (
	ActionViewAccount        Action = "VIEW_ACCOUNT"
	ActionUpdateAccount      Action = "UPDATE_ACCOUNT"
	ActionMessage            Action = "MESSAGE"
	ActionViewClassroom      Action = "VIEW_CLASSROOM"
	ActionViewActivity       Action = "VIEW_ACTIVITY"
	ActionViewGroupTimetable Action = "VIEW_GROUP_TIMETABLE"
)

// Decision is the outcome of an authorization check. A denial always
// carries a human-readable reason; callers use it verbatim in audit trails
// and denial responses.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Permit is the allowing decision.
func Permit() Decision {
	return Decision{Allowed: true}
}

// Deny builds a denying decision with the given reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// ReasonInvalidRole is returned whenever an actor or target role falls
// outside the recognized set for an action.
const ReasonInvalidRole = "invalid role"

// RelationshipGraph is the traversal capability the engine depends on.
// Implementations decide how relationships are stored (SQL joins, graph
// queries, in-memory indices); the engine only asks yes/no questions.
type RelationshipGraph interface {
	// IsChildOf reports whether the student is a child of the parent.
	IsChildOf(ctx context.Context, parentID, studentID string) (bool, error)
	// Teaches reports whether the student is enrolled in any classroom
	// taught by the teacher.
	Teaches(ctx context.Context, teacherID, studentID string) (bool, error)
	// TeachesChildOf reports whether any child of the parent is taught by
	// the teacher.
	TeachesChildOf(ctx context.Context, teacherID, parentID string) (bool, error)
	// SharesChild reports whether the two parents have at least one child
	// in common.
	SharesChild(ctx context.Context, parentID, otherParentID string) (bool, error)
	// HasChildInSchool reports whether any child of the parent belongs to
	// the school.
	HasChildInSchool(ctx context.Context, parentID, schoolID string) (bool, error)
	// HasChildInClassroom reports whether any child of the parent is
	// enrolled in the classroom.
	HasChildInClassroom(ctx context.Context, parentID, classroomID string) (bool, error)
	// IsTimetableSubscriber reports whether the student subscribes to the
	// group timetable.
	IsTimetableSubscriber(ctx context.Context, studentID, timetableID string) (bool, error)
	// HasSubscribedChild reports whether any child of the parent
	// subscribes to the group timetable.
	HasSubscribedChild(ctx context.Context, parentID, timetableID string) (bool, error)
}

// Observer is notified of every decision, keyed by action. Used to feed
// metrics without coupling the engine to an instrumentation library.
type Observer func(action Action, allowed bool)

// Engine evaluates authorization decisions. It holds no mutable state and
// is safe for concurrent use.
type Engine struct {
	graph    RelationshipGraph
	logger   *zap.Logger
	observer Observer
}

// New constructs an Engine.
func New(graph RelationshipGraph, logger *zap.Logger, observer Observer) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{graph: graph, logger: logger, observer: observer}
}

// Decide evaluates whether the actor may perform action on target. The
// target type depends on the action: an AccountContext for account actions,
// a Classroom, Activity or GroupTimetable otherwise. The returned error is
// reserved for graph lookup failures; rule violations come back as a
// denying Decision.
func (e *Engine) Decide(ctx context.Context, action Action, actor models.AccountContext, target interface{}) (Decision, error) {
	decision, err := e.decide(ctx, action, actor, target)
	if err != nil {
		return decision, err
	}
	if e.observer != nil {
		e.observer(action, decision.Allowed)
	}
	if !decision.Allowed {
		e.logger.Debug("authorization denied",
			zap.String("action", string(action)),
			zap.String("actor_id", actor.ID),
			zap.String("actor_role", string(actor.Role)),
			zap.String("reason", decision.Reason),
		)
	}
	return decision, nil
}

func (e *Engine) decide(ctx context.Context, action Action, actor models.AccountContext, target interface{}) (Decision, error) {
	switch action {
	case ActionViewAccount:
		t, ok := target.(models.AccountContext)
		if !ok {
			return Deny(ReasonInvalidRole), nil
		}
		return e.decideViewAccount(ctx, actor, t)
	case ActionUpdateAccount:
		t, ok := target.(models.AccountContext)
		if !ok {
			return Deny(ReasonInvalidRole), nil
		}
		return e.decideUpdateAccount(ctx, actor, t)
	case ActionMessage:
		t, ok := target.(models.AccountContext)
		if !ok {
			return Deny(ReasonInvalidRole), nil
		}
		return e.decideMessage(ctx, actor, t)
	case ActionViewClassroom:
		t, ok := target.(models.Classroom)
		if !ok {
			return Deny(ReasonInvalidRole), nil
		}
		return e.decideViewClassroom(ctx, actor, t)
	case ActionViewActivity:
		t, ok := target.(models.Activity)
		if !ok {
			return Deny(ReasonInvalidRole), nil
		}
		return e.decideViewActivity(ctx, actor, t)
	case ActionViewGroupTimetable:
		t, ok := target.(models.GroupTimetable)
		if !ok {
			return Deny(ReasonInvalidRole), nil
		}
		return e.decideViewGroupTimetable(ctx, actor, t)
	default:
		return Deny("unrecognized action"), nil
	}
}

func viewActorRole(role models.Role) bool {
	switch role {
	case models.RolePrincipal, models.RoleAdmin, models.RoleTeacher, models.RoleParent, models.RoleStudent:
		return true
	}
	return false
}

func viewTargetRole(role models.Role) bool {
	switch role {
	case models.RoleParent, models.RoleStudent, models.RolePrincipal, models.RoleAdmin, models.RoleTeacher:
		return true
	}
	return false
}

func (e *Engine) decideViewAccount(ctx context.Context, actor, target models.AccountContext) (Decision, error) {
	if !viewActorRole(actor.Role) || !viewTargetRole(target.Role) {
		return Deny(ReasonInvalidRole), nil
	}

	switch actor.Role {
	case models.RolePrincipal, models.RoleAdmin:
		if target.Role == models.RoleParent {
			ok, err := e.graph.HasChildInSchool(ctx, target.ID, actor.SchoolID)
			if err != nil {
				return Decision{}, err
			}
			if !ok {
				return Deny("you can only view parent profiles with a child in your school"), nil
			}
			return Permit(), nil
		}
		if !actor.SameSchool(target.SchoolID) {
			return Deny("you can only view accounts of people in your own school"), nil
		}
		return Permit(), nil

	case models.RoleTeacher:
		switch target.Role {
		case models.RolePrincipal, models.RoleAdmin, models.RoleTeacher:
			if !actor.SameSchool(target.SchoolID) {
				return Deny("you can only view profiles of colleagues in your own school"), nil
			}
			return Permit(), nil
		case models.RoleParent:
			ok, err := e.graph.TeachesChildOf(ctx, actor.ID, target.ID)
			if err != nil {
				return Decision{}, err
			}
			if !ok {
				return Deny("you can only view parent profiles of students you teach"), nil
			}
			return Permit(), nil
		case models.RoleStudent:
			ok, err := e.graph.Teaches(ctx, actor.ID, target.ID)
			if err != nil {
				return Decision{}, err
			}
			if !ok {
				return Deny("you can only view profiles of students you teach"), nil
			}
			return Permit(), nil
		}

	case models.RoleParent:
		switch target.Role {
		case models.RoleStudent:
			ok, err := e.graph.IsChildOf(ctx, actor.ID, target.ID)
			if err != nil {
				return Decision{}, err
			}
			if !ok {
				return Deny("you can only view profiles of your own children"), nil
			}
			return Permit(), nil
		case models.RoleTeacher:
			ok, err := e.graph.TeachesChildOf(ctx, target.ID, actor.ID)
			if err != nil {
				return Decision{}, err
			}
			if !ok {
				return Deny("you can only view profiles of teachers who teach your children"), nil
			}
			return Permit(), nil
		case models.RolePrincipal, models.RoleAdmin:
			ok, err := e.graph.HasChildInSchool(ctx, actor.ID, target.SchoolID)
			if err != nil {
				return Decision{}, err
			}
			if !ok {
				return Deny("you can only view profiles of admins and principals of your children's schools"), nil
			}
			return Permit(), nil
		case models.RoleParent:
			ok, err := e.graph.SharesChild(ctx, actor.ID, target.ID)
			if err != nil {
				return Decision{}, err
			}
			if !ok {
				return Deny("you can only view profiles of parents who share a child with you"), nil
			}
			return Permit(), nil
		}

	case models.RoleStudent:
		switch target.Role {
		case models.RoleParent:
			ok, err := e.graph.IsChildOf(ctx, target.ID, actor.ID)
			if err != nil {
				return Decision{}, err
			}
			if !ok {
				return Deny("you can only view profiles of your own parents"), nil
			}
			return Permit(), nil
		case models.RoleTeacher:
			ok, err := e.graph.Teaches(ctx, target.ID, actor.ID)
			if err != nil {
				return Decision{}, err
			}
			if !ok {
				return Deny("you can only view profiles of teachers who teach you"), nil
			}
			return Permit(), nil
		case models.RolePrincipal, models.RoleAdmin:
			if !actor.SameSchool(target.SchoolID) {
				return Deny("you can only view profiles of admins and principals of your own school"), nil
			}
			return Permit(), nil
		case models.RoleStudent:
			return Deny("you can only view profiles of your parents, teachers and school officials"), nil
		}
	}

	return Deny(ReasonInvalidRole), nil
}

func (e *Engine) decideUpdateAccount(ctx context.Context, actor, target models.AccountContext) (Decision, error) {
	if actor.Role != models.RolePrincipal && actor.Role != models.RoleAdmin {
		return Deny("only principals and admins can update accounts"), nil
	}
	switch target.Role {
	case models.RoleParent:
		ok, err := e.graph.HasChildInSchool(ctx, target.ID, actor.SchoolID)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Deny("you can only update parent profiles with a child enrolled in your school"), nil
		}
		return Permit(), nil
	case models.RoleStudent, models.RoleAdmin, models.RoleTeacher:
		if !actor.SameSchool(target.SchoolID) {
			return Deny("you can only update accounts in your own school"), nil
		}
		return Permit(), nil
	default:
		return Deny(ReasonInvalidRole), nil
	}
}

// decideMessage is the symmetric closure of the view-account rules: a
// conversation may be opened when either side could view the other.
func (e *Engine) decideMessage(ctx context.Context, actor, target models.AccountContext) (Decision, error) {
	if !viewActorRole(actor.Role) || !viewActorRole(target.Role) {
		return Deny(ReasonInvalidRole), nil
	}
	forward, err := e.decideViewAccount(ctx, actor, target)
	if err != nil {
		return Decision{}, err
	}
	if forward.Allowed {
		return Permit(), nil
	}
	reverse, err := e.decideViewAccount(ctx, target, actor)
	if err != nil {
		return Decision{}, err
	}
	if reverse.Allowed {
		return Permit(), nil
	}
	return Deny("you can only message accounts you have a school or family relationship with"), nil
}

func (e *Engine) decideViewClassroom(ctx context.Context, actor models.AccountContext, classroom models.Classroom) (Decision, error) {
	switch actor.Role {
	case models.RolePrincipal, models.RoleAdmin:
		if !actor.SameSchool(classroom.SchoolID) {
			return Deny("you can only view classrooms in your own school"), nil
		}
		return Permit(), nil
	case models.RoleTeacher:
		if !actor.SameSchool(classroom.SchoolID) || !actor.TeachesClassroom(classroom.ID) {
			return Deny("you can only view classrooms you teach"), nil
		}
		return Permit(), nil
	case models.RoleParent:
		ok, err := e.graph.HasChildInClassroom(ctx, actor.ID, classroom.ID)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Deny("you can only view classrooms your children are enrolled in"), nil
		}
		return Permit(), nil
	case models.RoleStudent:
		if !actor.SameSchool(classroom.SchoolID) || !actor.EnrolledIn(classroom.ID) {
			return Deny("you can only view classrooms you are enrolled in"), nil
		}
		return Permit(), nil
	default:
		return Deny(ReasonInvalidRole), nil
	}
}

func (e *Engine) decideViewActivity(ctx context.Context, actor models.AccountContext, activity models.Activity) (Decision, error) {
	if !actor.SameSchool(activity.SchoolID) {
		if !viewActorRole(actor.Role) {
			return Deny(ReasonInvalidRole), nil
		}
		return Deny("you can only view activities in your own school"), nil
	}
	switch actor.Role {
	case models.RolePrincipal, models.RoleAdmin:
		return Permit(), nil
	case models.RoleTeacher:
		if activity.LoggerID != actor.ID {
			return Deny("you can only view activities you logged"), nil
		}
		return Permit(), nil
	case models.RoleParent:
		ok, err := e.graph.IsChildOf(ctx, actor.ID, activity.RecipientID)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Deny("you can only view activities about your own children"), nil
		}
		return Permit(), nil
	case models.RoleStudent:
		if activity.RecipientID != actor.ID {
			return Deny("you can only view activities about yourself"), nil
		}
		return Permit(), nil
	default:
		return Deny(ReasonInvalidRole), nil
	}
}

func (e *Engine) decideViewGroupTimetable(ctx context.Context, actor models.AccountContext, timetable models.GroupTimetable) (Decision, error) {
	switch actor.Role {
	case models.RoleStudent:
		ok, err := e.graph.IsTimetableSubscriber(ctx, actor.ID, timetable.ID)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Deny("you can only view timetables you are subscribed to"), nil
		}
		return Permit(), nil
	case models.RoleParent:
		ok, err := e.graph.HasSubscribedChild(ctx, actor.ID, timetable.ID)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Deny("you can only view timetables your children are subscribed to"), nil
		}
		return Permit(), nil
	case models.RoleTeacher, models.RoleAdmin, models.RolePrincipal:
		if !actor.SameSchool(timetable.SchoolID) {
			return Deny("you can only view timetables of grades in your own school"), nil
		}
		return Permit(), nil
	default:
		return Deny(ReasonInvalidRole), nil
	}
}
