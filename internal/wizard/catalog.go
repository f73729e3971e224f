package wizard

import (
	"fmt"
	"sort"
	"strings"

	"salonbook/internal/apperr"
	"salonbook/internal/config"
	"salonbook/internal/model"
)

// Option is one selectable session type. EmployeeID is zero when the
// professional comes from the category fallback.
type Option struct {
	ID         string
	Label      string
	Service    model.Service
	EmployeeID int64
}

// Catalog maps option ids to services and professionals. Lookups go through
// stable ids; ResolveByName exists only to bootstrap ids from free text.
type Catalog struct {
	options   []Option
	byID      map[string]Option
	employees map[int64]model.Employee
	services  map[int64]model.Service
	fallbacks map[string]int64
}

// NewCatalog builds the option list from catalog.yaml. Without explicit
// options every active service becomes one option with id "service-<id>".
func NewCatalog(cfg *config.Catalog) (*Catalog, error) {
	c := &Catalog{
		byID:      make(map[string]Option),
		employees: make(map[int64]model.Employee),
		fallbacks: make(map[string]int64),
	}

	services := make(map[int64]model.Service, len(cfg.Services))
	c.services = services
	for _, s := range cfg.Services {
		services[s.ID] = model.Service{
			ID:              s.ID,
			Name:            s.Name,
			Category:        s.Category,
			Price:           s.Price,
			DepositPercent:  s.DepositPercent,
			DurationMinutes: s.DurationMinutes,
			IsActive:        s.IsActive,
		}
	}
	for _, e := range cfg.Employees {
		c.employees[e.ID] = model.Employee{ID: e.ID, Name: e.Name, Category: e.Category, IsActive: e.IsActive}
	}
	for category, id := range cfg.CategoryFallbacks {
		c.fallbacks[strings.ToLower(category)] = id
	}

	add := func(o Option) {
		c.options = append(c.options, o)
		c.byID[o.ID] = o
	}

	if len(cfg.Options) == 0 {
		ids := make([]int64, 0, len(services))
		for id := range services {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			s := services[id]
			if !s.IsActive {
				continue
			}
			add(Option{ID: fmt.Sprintf("service-%d", s.ID), Label: s.Name, Service: s})
		}
		return c, nil
	}

	for _, o := range cfg.Options {
		s, ok := services[o.ServiceID]
		if !ok {
			return nil, fmt.Errorf("option %s: unknown service %d", o.ID, o.ServiceID)
		}
		if !s.IsActive {
			continue
		}
		label := o.Label
		if label == "" {
			label = s.Name
		}
		add(Option{ID: o.ID, Label: label, Service: s, EmployeeID: o.EmployeeID})
	}
	return c, nil
}

// Options lists selectable options in catalog order.
func (c *Catalog) Options() []Option {
	out := make([]Option, len(c.options))
	copy(out, c.options)
	return out
}

func (c *Catalog) Option(id string) (Option, bool) {
	o, ok := c.byID[id]
	return o, ok
}

// Employees lists active employees by id.
func (c *Catalog) Employees() []model.Employee {
	out := make([]model.Employee, 0, len(c.employees))
	for _, e := range c.employees {
		if e.IsActive {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Service(id int64) (model.Service, bool) {
	s, ok := c.services[id]
	return s, ok
}

// Professional returns the employee assigned to o: the explicit mapping
// first, then the fallback for the service category.
func (c *Catalog) Professional(o Option) (model.Employee, error) {
	id := o.EmployeeID
	if id == 0 {
		id = c.fallbacks[strings.ToLower(o.Service.Category)]
	}
	if id == 0 {
		return model.Employee{}, apperr.Invalid("professional", "no professional is assigned to %q", o.Label)
	}
	e, ok := c.employees[id]
	if !ok || !e.IsActive {
		return model.Employee{}, apperr.Invalid("professional", "professional %d for %q is unavailable", id, o.Label)
	}
	return e, nil
}

// ResolveByName finds an option whose label or service name contains name,
// ignoring case. It is a bootstrap path for free-text input and legacy data;
// the first match in catalog order wins.
func (c *Catalog) ResolveByName(name string) (Option, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Option{}, false
	}
	for _, o := range c.options {
		if strings.Contains(strings.ToLower(o.Label), needle) ||
			strings.Contains(strings.ToLower(o.Service.Name), needle) {
			return o, true
		}
	}
	return Option{}, false
}
