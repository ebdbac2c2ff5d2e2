package forms

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Validate runs the two-phase validation pass and reports overall
// success: true iff no field carries any error afterwards. Per-field
// error lists remain attached to the form for the caller to read.
//
// Phase one runs every field's synchronous chain sequentially: the
// required check (stop-on-failure), the declared rule chain, then extra
// validators in registration order. A field stopped by its required
// check is excluded from phase two.
//
// Phase two launches the async validator of every eligible field
// concurrently and waits for all of them. A *FieldError outcome is
// recorded on the owning field; any other error is a programming error:
// siblings still run to completion, their results are discarded, and
// the first such error (in field declaration order) is returned,
// aborting aggregation.
func (f *Form) Validate(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, err := f.validate(ctx)
	formValidationDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		formValidationsTotal.WithLabelValues("fatal").Inc()
	case ok:
		formValidationsTotal.WithLabelValues("success").Inc()
	default:
		formValidationsTotal.WithLabelValues("failure").Inc()
	}
	return ok, err
}

// ValidateOnSubmit calls Validate only if the form was submitted with a
// mutating method, short-circuiting to false without running any
// validator otherwise.
func (f *Form) ValidateOnSubmit(ctx context.Context) (bool, error) {
	if !f.IsSubmitted() {
		return false, nil
	}
	return f.Validate(ctx)
}

func (f *Form) validate(ctx context.Context) (bool, error) {
	if f.csrf != nil {
		f.csrf.validate()
	}

	// Phase one: synchronous, sequential, deterministic order.
	var eligible []*Field
	for _, field := range f.fields {
		stopped, err := validateSync(ctx, f, field)
		if err != nil {
			return false, err
		}
		if !stopped && field.spec.asyncValidator != nil {
			eligible = append(eligible, field)
		}
	}

	// Phase two: fan out one task per eligible field, fan in. Each task
	// appends only to its own field's error list, so no lock is needed.
	fatal := make([]error, len(eligible))
	var wg sync.WaitGroup
	for i, field := range eligible {
		wg.Add(1)
		go func(i int, field *Field) {
			defer wg.Done()

			err := field.spec.asyncValidator(ctx, f, field)
			if err == nil {
				return
			}
			var ferr *FieldError
			if errors.As(err, &ferr) {
				field.Errors = append(field.Errors, ferr.Message)
				return
			}
			fatal[i] = err
		}(i, field)
	}
	wg.Wait()

	for _, err := range fatal {
		if err != nil {
			return false, err
		}
	}

	return !f.hasErrors(), nil
}

// validateSync runs one field's phase-one chain. It reports whether the
// field was stopped early (excluding it from phase two) and returns any
// fatal error.
func validateSync(ctx context.Context, f *Form, field *Field) (stopped bool, err error) {
	if field.spec.required && field.empty() {
		field.Errors = append(field.Errors, field.message("required"))
		return true, nil
	}

	if err := runRules(field); err != nil {
		return false, err
	}

	for _, validator := range field.spec.validators {
		err := validator(ctx, f, field)
		if err == nil {
			continue
		}
		var ferr *FieldError
		if errors.As(err, &ferr) {
			field.Errors = append(field.Errors, ferr.Message)
			continue
		}
		return false, err
	}
	return false, nil
}
