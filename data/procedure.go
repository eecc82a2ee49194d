package data

import (
	"context"
	"fmt"
	"sync"
)

// Parameter is one declared parameter of a stored procedure or function.
type Parameter struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Mode     string `json:"mode,omitempty"`
	Position int    `json:"position"`
}

// StoredProcedure is a stored routine (procedure or function).
type StoredProcedure struct {
	Name       string
	Schema     string
	Type       string
	Definition string
	Comment    string

	// SpecificName identifies overloads where the engine has them.
	SpecificName string

	db *Database

	mu     sync.Mutex
	params []Parameter
}

// Database returns the database the routine belongs to.
func (p *StoredProcedure) Database() *Database { return p.db }

// Parameters returns the routine's parameters, read once and cached.
func (p *StoredProcedure) Parameters(ctx context.Context) ([]Parameter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.params != nil {
		return p.params, nil
	}
	if p.db == nil {
		return nil, fmt.Errorf("procedure %s is not bound to a database", p.Name)
	}
	params, err := p.db.readParameters(ctx, p)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = []Parameter{}
	}
	p.params = params
	return params, nil
}
