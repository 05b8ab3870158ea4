// Package directory defines the identity capability the supervisor pipeline
// mutates: lookup, create, modify and delete of principals. Business failures
// (unknown user, duplicate) are reported in Result; the error return is kept
// for an unusable backend.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/viant/ulma/service/dao"
	"github.com/viant/ulma/service/dao/criteria"
)

// Result status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result codes.
const (
	CodeOK            = "OK"
	CodeCreated       = "CREATED"
	CodeDeleted       = "DELETED"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeInvalidParams = "INVALID_PARAMS"
)

// Principal is a directory user.
type Principal struct {
	UPN         string   `json:"upn" yaml:"upn"`
	DisplayName string   `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Role        string   `json:"role,omitempty" yaml:"role,omitempty"`
	Groups      []string `json:"groups,omitempty" yaml:"groups,omitempty"`
	Apps        []string `json:"apps,omitempty" yaml:"apps,omitempty"`
	Location    string   `json:"location,omitempty" yaml:"location,omitempty"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
}

// Field exposes filterable fields to criteria.Match.
func (p *Principal) Field(name string) (string, bool) {
	switch name {
	case "UPN":
		return p.UPN, true
	case "Role":
		return p.Role, true
	case "Location":
		return p.Location, true
	}
	return "", false
}

// Change describes a modification; nil fields are left untouched.
type Change struct {
	DisplayName  *string  `json:"displayName,omitempty"`
	Role         *string  `json:"role,omitempty"`
	Location     *string  `json:"location,omitempty"`
	Enabled      *bool    `json:"enabled,omitempty"`
	AddGroups    []string `json:"addGroups,omitempty"`
	RemoveGroups []string `json:"removeGroups,omitempty"`
	AddApps      []string `json:"addApps,omitempty"`
	RemoveApps   []string `json:"removeApps,omitempty"`
}

// Result is the outcome of a directory operation.
type Result struct {
	Status    string     `json:"status"`
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	Principal *Principal `json:"principal,omitempty"`
}

// OK reports a successful result.
func (r *Result) OK() bool { return r != nil && r.Status == StatusSuccess }

// Service is the directory capability.
type Service interface {
	Lookup(ctx context.Context, upn string) (*Result, error)
	Create(ctx context.Context, principal *Principal) (*Result, error)
	Modify(ctx context.Context, upn string, change *Change) (*Result, error)
	Delete(ctx context.Context, upn string) (*Result, error)
	List(ctx context.Context, parameters ...*dao.Parameter) ([]*Principal, error)
}

var _ Service = (*Directory)(nil)

// Directory implements Service over any dao.Service of principals.
type Directory struct {
	dao dao.Service[string, Principal]
}

// NormalizeUPN lowercases and trims a principal name.
func NormalizeUPN(upn string) string { return strings.ToLower(strings.TrimSpace(upn)) }

// Key selects the storage key of a principal.
func Key(p *Principal) string { return NormalizeUPN(p.UPN) }

// Filter applies List parameters through criteria.Match.
func Filter(p *Principal, parameters []*dao.Parameter) bool {
	return criteria.Match(p.Field, parameters)
}

func (d *Directory) Lookup(ctx context.Context, upn string) (*Result, error) {
	upn = NormalizeUPN(upn)
	if upn == "" {
		return invalid("upn is required"), nil
	}
	principal, err := d.dao.Load(ctx, upn)
	if errors.Is(err, dao.ErrNotFound) {
		return notFound(upn), nil
	}
	if err != nil {
		return nil, err
	}
	return &Result{Status: StatusSuccess, Code: CodeOK, Message: "user " + upn + " found", Principal: principal}, nil
}

func (d *Directory) Create(ctx context.Context, principal *Principal) (*Result, error) {
	if principal == nil || NormalizeUPN(principal.UPN) == "" {
		return invalid("upn is required"), nil
	}
	created := *principal
	created.UPN = NormalizeUPN(created.UPN)
	if _, err := d.dao.Load(ctx, created.UPN); err == nil {
		return &Result{Status: StatusError, Code: CodeConflict, Message: "user " + created.UPN + " already exists"}, nil
	} else if !errors.Is(err, dao.ErrNotFound) {
		return nil, err
	}
	if created.DisplayName == "" {
		created.DisplayName = created.UPN
	}
	created.Enabled = true
	created.Groups = normalizeSet(created.Groups)
	created.Apps = normalizeSet(created.Apps)
	if err := d.dao.Save(ctx, &created); err != nil {
		return nil, err
	}
	return &Result{Status: StatusSuccess, Code: CodeCreated, Message: "user " + created.UPN + " created", Principal: &created}, nil
}

func (d *Directory) Modify(ctx context.Context, upn string, change *Change) (*Result, error) {
	upn = NormalizeUPN(upn)
	if upn == "" || change == nil {
		return invalid("upn and change are required"), nil
	}
	principal, err := d.dao.Load(ctx, upn)
	if errors.Is(err, dao.ErrNotFound) {
		return notFound(upn), nil
	}
	if err != nil {
		return nil, err
	}
	if change.DisplayName != nil {
		principal.DisplayName = *change.DisplayName
	}
	if change.Role != nil {
		principal.Role = *change.Role
	}
	if change.Location != nil {
		principal.Location = *change.Location
	}
	if change.Enabled != nil {
		principal.Enabled = *change.Enabled
	}
	principal.Groups = apply(principal.Groups, change.AddGroups, change.RemoveGroups)
	principal.Apps = apply(principal.Apps, change.AddApps, change.RemoveApps)
	if err = d.dao.Save(ctx, principal); err != nil {
		return nil, err
	}
	return &Result{Status: StatusSuccess, Code: CodeOK, Message: "user " + upn + " updated", Principal: principal}, nil
}

func (d *Directory) Delete(ctx context.Context, upn string) (*Result, error) {
	upn = NormalizeUPN(upn)
	if upn == "" {
		return invalid("upn is required"), nil
	}
	err := d.dao.Delete(ctx, upn)
	if errors.Is(err, dao.ErrNotFound) {
		return notFound(upn), nil
	}
	if err != nil {
		return nil, err
	}
	return &Result{Status: StatusSuccess, Code: CodeDeleted, Message: "user " + upn + " deleted"}, nil
}

func (d *Directory) List(ctx context.Context, parameters ...*dao.Parameter) ([]*Principal, error) {
	principals, err := d.dao.List(ctx, parameters...)
	if err != nil {
		return nil, err
	}
	sort.Slice(principals, func(i, j int) bool { return principals[i].UPN < principals[j].UPN })
	return principals, nil
}

// Seed stores principals, replacing existing ones.
func (d *Directory) Seed(ctx context.Context, principals ...*Principal) error {
	for _, principal := range principals {
		seeded := *principal
		seeded.UPN = NormalizeUPN(seeded.UPN)
		if err := d.dao.Save(ctx, &seeded); err != nil {
			return fmt.Errorf("failed to seed %s: %w", seeded.UPN, err)
		}
	}
	return nil
}

func notFound(upn string) *Result {
	return &Result{Status: StatusError, Code: CodeNotFound, Message: "user " + upn + " not found"}
}

func invalid(message string) *Result {
	return &Result{Status: StatusError, Code: CodeInvalidParams, Message: message}
}

func normalizeSet(values []string) []string {
	return apply(nil, values, nil)
}

func apply(current, add, remove []string) []string {
	set := map[string]bool{}
	for _, value := range current {
		set[value] = true
	}
	for _, value := range add {
		if value = strings.TrimSpace(value); value != "" {
			set[value] = true
		}
	}
	for _, value := range remove {
		delete(set, strings.TrimSpace(value))
	}
	if len(set) == 0 {
		return nil
	}
	ret := make([]string, 0, len(set))
	for value := range set {
		ret = append(ret, value)
	}
	sort.Strings(ret)
	return ret
}

// New wraps a dao.
func New(store dao.Service[string, Principal]) *Directory {
	return &Directory{dao: store}
}
