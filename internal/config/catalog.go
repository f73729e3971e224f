package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"salonbook/internal/model"
)

// EmployeeConfig represents a single professional.
type EmployeeConfig struct {
	ID           int64            `yaml:"id"`
	Name         string           `yaml:"name"`
	Category     string           `yaml:"category"`
	IsActive     bool             `yaml:"is_active"`
	WorkingHours []HoursConfig    `yaml:"working_hours,omitempty"`
	Overrides    []HoursConfig    `yaml:"overrides,omitempty"`
	Blackouts    []BlackoutConfig `yaml:"blackouts,omitempty"`
}

// HoursConfig is a working-hours entry. Days (1=Mon, 7=Sun) makes it
// recurring, Date ("2026-03-10") makes it a one-day override.
type HoursConfig struct {
	Days      []int  `yaml:"days,omitempty"`
	Date      string `yaml:"date,omitempty"`
	StartHour int    `yaml:"start_hour"`
	EndHour   int    `yaml:"end_hour"`
}

// BlackoutConfig excludes hours from the working window.
type BlackoutConfig struct {
	Days      []int  `yaml:"days,omitempty"`
	Date      string `yaml:"date,omitempty"`
	StartHour int    `yaml:"start_hour"`
	EndHour   int    `yaml:"end_hour"`
	Reason    string `yaml:"reason,omitempty"`
}

// ServiceConfig represents a bookable service.
type ServiceConfig struct {
	ID              int64   `yaml:"id"`
	Name            string  `yaml:"name"`
	Category        string  `yaml:"category"`
	Price           float64 `yaml:"price"`
	DepositPercent  int     `yaml:"deposit_percent"`
	DurationMinutes int     `yaml:"duration_minutes"`
	IsActive        bool    `yaml:"is_active"`
}

// OptionConfig is one entry of the session-type list shown by the wizard.
// EmployeeID is optional; without it the category fallback applies.
type OptionConfig struct {
	ID         string `yaml:"id"`
	Label      string `yaml:"label"`
	ServiceID  int64  `yaml:"service_id"`
	EmployeeID int64  `yaml:"employee_id,omitempty"`
}

// HolidayConfig closes every employee for a date.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Name string `yaml:"name"`
}

// DefaultsConfig represents global default settings.
type DefaultsConfig struct {
	WorkingHours []HoursConfig `yaml:"working_hours"`
	DaysOff      []int         `yaml:"days_off"` // 1=Mon, 7=Sun
}

// Catalog is the root of catalog.yaml.
type Catalog struct {
	Employees         []EmployeeConfig `yaml:"employees"`
	Services          []ServiceConfig  `yaml:"services"`
	Options           []OptionConfig   `yaml:"options"`
	CategoryFallbacks map[string]int64 `yaml:"category_fallbacks"`
	Defaults          DefaultsConfig   `yaml:"defaults"`
	Holidays          []HolidayConfig  `yaml:"holidays"`
}

// LoadCatalog loads and validates the catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		path = "configs/catalog.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes, validates and applies defaults.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cfg Catalog
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Catalog) Validate() error {
	if len(c.Employees) == 0 {
		return fmt.Errorf("no employees defined")
	}
	if len(c.Services) == 0 {
		return fmt.Errorf("no services defined")
	}

	employees := make(map[int64]bool)
	for i, e := range c.Employees {
		if e.ID <= 0 {
			return fmt.Errorf("employee[%d]: id must be positive, got %d", i, e.ID)
		}
		if employees[e.ID] {
			return fmt.Errorf("employee[%d]: duplicate id %d", i, e.ID)
		}
		employees[e.ID] = true
		if e.Name == "" {
			return fmt.Errorf("employee[%d]: name is required", i)
		}
		for j, h := range e.WorkingHours {
			if err := validateHours(h.Days, "", h.StartHour, h.EndHour, fmt.Sprintf("employee[%d].working_hours[%d]", i, j)); err != nil {
				return err
			}
		}
		for j, h := range e.Overrides {
			if h.Date == "" {
				return fmt.Errorf("employee[%d].overrides[%d]: date is required", i, j)
			}
			if err := validateHours(nil, h.Date, h.StartHour, h.EndHour, fmt.Sprintf("employee[%d].overrides[%d]", i, j)); err != nil {
				return err
			}
		}
		for j, b := range e.Blackouts {
			if err := validateHours(b.Days, b.Date, b.StartHour, b.EndHour, fmt.Sprintf("employee[%d].blackouts[%d]", i, j)); err != nil {
				return err
			}
			if len(b.Days) == 0 && b.Date == "" {
				return fmt.Errorf("employee[%d].blackouts[%d]: days or date is required", i, j)
			}
		}
	}

	services := make(map[int64]bool)
	for i, s := range c.Services {
		if s.ID <= 0 {
			return fmt.Errorf("service[%d]: id must be positive, got %d", i, s.ID)
		}
		if services[s.ID] {
			return fmt.Errorf("service[%d]: duplicate id %d", i, s.ID)
		}
		services[s.ID] = true
		if s.Name == "" {
			return fmt.Errorf("service[%d]: name is required", i)
		}
		if s.DurationMinutes <= 0 || s.DurationMinutes%30 != 0 {
			return fmt.Errorf("service[%d]: duration_minutes must be a positive multiple of 30, got %d", i, s.DurationMinutes)
		}
		if s.DepositPercent < 0 || s.DepositPercent > 100 {
			return fmt.Errorf("service[%d]: deposit_percent must be within 0-100", i)
		}
	}

	options := make(map[string]bool)
	for i, o := range c.Options {
		if o.ID == "" {
			return fmt.Errorf("option[%d]: id is required", i)
		}
		if options[o.ID] {
			return fmt.Errorf("option[%d]: duplicate id '%s'", i, o.ID)
		}
		options[o.ID] = true
		if !services[o.ServiceID] {
			return fmt.Errorf("option[%d]: unknown service_id %d", i, o.ServiceID)
		}
		if o.EmployeeID != 0 && !employees[o.EmployeeID] {
			return fmt.Errorf("option[%d]: unknown employee_id %d", i, o.EmployeeID)
		}
	}

	for category, id := range c.CategoryFallbacks {
		if !employees[id] {
			return fmt.Errorf("category_fallbacks[%s]: unknown employee %d", category, id)
		}
	}

	for i, h := range c.Defaults.WorkingHours {
		if err := validateHours(h.Days, "", h.StartHour, h.EndHour, fmt.Sprintf("defaults.working_hours[%d]", i)); err != nil {
			return err
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	for i, d := range c.Defaults.DaysOff {
		if d < 1 || d > 7 {
			return fmt.Errorf("defaults.days_off[%d]: invalid day %d, must be 1-7 (1=Mon, 7=Sun)", i, d)
		}
	}

	return nil
}

func validateHours(days []int, date string, start, end int, prefix string) error {
	for _, d := range days {
		if d < 1 || d > 7 {
			return fmt.Errorf("%s: invalid day %d, must be 1-7", prefix, d)
		}
	}
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return fmt.Errorf("%s: invalid date '%s', expected YYYY-MM-DD", prefix, date)
		}
	}
	if start < 0 || end > 24 {
		return fmt.Errorf("%s: hours must be within 0-24", prefix)
	}
	if end < start {
		return fmt.Errorf("%s: end_hour must not be before start_hour", prefix)
	}
	return nil
}

// applyDefaults gives employees without hours the default week, minus days off.
func (c *Catalog) applyDefaults() {
	for i := range c.Employees {
		if len(c.Employees[i].WorkingHours) > 0 {
			continue
		}
		for _, h := range c.Defaults.WorkingHours {
			h.Days = c.withoutDaysOff(h.Days)
			if len(h.Days) > 0 {
				c.Employees[i].WorkingHours = append(c.Employees[i].WorkingHours, h)
			}
		}
	}
}

func (c *Catalog) withoutDaysOff(days []int) []int {
	var out []int
	for _, d := range days {
		if !c.IsDayOff(d) {
			out = append(out, d)
		}
	}
	return out
}

// WorkingHoursRules expands the employee's recurring hours, overrides and
// the catalog holidays into rules. Holidays become zero-length overrides.
func (c *Catalog) WorkingHoursRules(e *EmployeeConfig) ([]model.WorkingHoursRule, error) {
	var rules []model.WorkingHoursRule
	for _, h := range e.WorkingHours {
		for _, d := range h.Days {
			rules = append(rules, model.WorkingHoursRule{EmployeeID: e.ID, DayOfWeek: d, StartHour: h.StartHour, EndHour: h.EndHour})
		}
	}
	for _, h := range e.Overrides {
		date, err := model.ParseDate(h.Date)
		if err != nil {
			return nil, err
		}
		rules = append(rules, model.WorkingHoursRule{EmployeeID: e.ID, Date: date, StartHour: h.StartHour, EndHour: h.EndHour})
	}
	for _, h := range c.Holidays {
		date, err := model.ParseDate(h.Date)
		if err != nil {
			return nil, err
		}
		rules = append(rules, model.WorkingHoursRule{EmployeeID: e.ID, Date: date})
	}
	return rules, nil
}

// Blackouts expands the employee's blackout entries.
func (c *Catalog) Blackouts(e *EmployeeConfig) ([]model.BlackoutWindow, error) {
	var out []model.BlackoutWindow
	for _, b := range e.Blackouts {
		if b.Date != "" {
			date, err := model.ParseDate(b.Date)
			if err != nil {
				return nil, err
			}
			out = append(out, model.BlackoutWindow{EmployeeID: e.ID, Date: date, StartHour: b.StartHour, EndHour: b.EndHour, Reason: b.Reason})
			continue
		}
		for _, d := range b.Days {
			out = append(out, model.BlackoutWindow{EmployeeID: e.ID, DayOfWeek: d, StartHour: b.StartHour, EndHour: b.EndHour, Reason: b.Reason})
		}
	}
	return out, nil
}

// GetEmployeeByID returns employee config by ID.
func (c *Catalog) GetEmployeeByID(id int64) *EmployeeConfig {
	for i := range c.Employees {
		if c.Employees[i].ID == id {
			return &c.Employees[i]
		}
	}
	return nil
}

// GetServiceByID returns service config by ID.
func (c *Catalog) GetServiceByID(id int64) *ServiceConfig {
	for i := range c.Services {
		if c.Services[i].ID == id {
			return &c.Services[i]
		}
	}
	return nil
}

// IsHoliday checks if a date is a holiday.
func (c *Catalog) IsHoliday(date time.Time) (bool, string) {
	dateStr := date.Format("2006-01-02")
	for _, h := range c.Holidays {
		if h.Date == dateStr {
			return true, h.Name
		}
	}
	return false, ""
}

// IsDayOff checks if a weekday (1=Mon, 7=Sun) is a default day off.
func (c *Catalog) IsDayOff(day int) bool {
	for _, d := range c.Defaults.DaysOff {
		if d == day {
			return true
		}
	}
	return false
}

// String returns a summary of the configuration.
func (c *Catalog) String() string {
	active := 0
	for _, e := range c.Employees {
		if e.IsActive {
			active++
		}
	}
	return fmt.Sprintf("Catalog: %d employees (%d active), %d services, %d options, %d holidays",
		len(c.Employees), active, len(c.Services), len(c.Options), len(c.Holidays))
}
