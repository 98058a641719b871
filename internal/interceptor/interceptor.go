// Package interceptor implements the get/put/remove hook chain a partition
// record store applies at its serialization boundary. Put interceptors may
// veto a write by returning an error; get and remove interceptors may
// rewrite the value flowing past them.
//
// The chain is assembled while the map is being configured and is not
// mutated afterwards, so invocation needs no locking.
package interceptor

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// GetFunc rewrites a value on the read path. It receives nil for a miss and
// may substitute a value (or keep the miss by returning nil).
type GetFunc func(value []byte) []byte

// PutFunc observes or rewrites a value before it is written. oldValue is nil
// for a fresh key. Returning an error vetoes the write.
type PutFunc func(oldValue, newValue []byte) ([]byte, error)

// RemoveFunc observes or rewrites the value being removed. Returning an
// error vetoes the removal.
type RemoveFunc func(value []byte) ([]byte, error)

// Chain is an ordered set of interceptors.
type Chain struct {
	gets    []GetFunc
	puts    []PutFunc
	removes []RemoveFunc
}

// NewChain creates an empty chain. An empty chain passes all values through
// unchanged.
func NewChain() *Chain {
	return &Chain{}
}

// AddGet appends a read interceptor.
func (c *Chain) AddGet(fn GetFunc) { c.gets = append(c.gets, fn) }

// AddPut appends a write interceptor.
func (c *Chain) AddPut(fn PutFunc) { c.puts = append(c.puts, fn) }

// AddRemove appends a removal interceptor.
func (c *Chain) AddRemove(fn RemoveFunc) { c.removes = append(c.removes, fn) }

// InterceptGet runs the read chain over value.
func (c *Chain) InterceptGet(value []byte) []byte {
	for _, fn := range c.gets {
		value = fn(value)
	}
	return value
}

// InterceptPut runs the write chain, returning the value to store or the
// first veto.
func (c *Chain) InterceptPut(oldValue, newValue []byte) ([]byte, error) {
	var err error
	for _, fn := range c.puts {
		newValue, err = fn(oldValue, newValue)
		if err != nil {
			return nil, err
		}
	}
	return newValue, nil
}

// InterceptRemove runs the removal chain over value.
func (c *Chain) InterceptRemove(value []byte) ([]byte, error) {
	var err error
	for _, fn := range c.removes {
		value, err = fn(value)
		if err != nil {
			return nil, err
		}
	}
	return value, nil
}

// NewSchemaValidator builds a PutFunc that validates every written value as
// a JSON document against the given JSON schema, vetoing writes that do not
// conform.
func NewSchemaValidator(schemaJSON []byte) (PutFunc, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return func(_, newValue []byte) ([]byte, error) {
		result, err := schema.Validate(gojsonschema.NewBytesLoader(newValue))
		if err != nil {
			return nil, fmt.Errorf("validate value: %w", err)
		}
		if !result.Valid() {
			errs := result.Errors()
			msg := ""
			for i, desc := range errs {
				if i > 0 {
					msg += "; "
				}
				msg += desc.String()
			}
			return nil, fmt.Errorf("value rejected by schema: %s", msg)
		}
		return newValue, nil
	}, nil
}
