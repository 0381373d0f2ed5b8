package routerd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shopify/ghostrouter"
	"github.com/Shopify/ghostrouter/condition"
)

// CompileRules turns the configured schemas into an Index. Every table must
// reference one of actions. Schemas listed twice are merged, keeping the
// first binding of each table.
func CompileRules(schemas []SchemaConfig, actions map[string]Action) (ghostrouter.Index, error) {
	builder := ghostrouter.NewIndexBuilder()

	for _, schemaConfig := range schemas {
		schema, err := compileSchema(schemaConfig, actions)
		if err != nil {
			return nil, err
		}
		builder.AddSchema(schema)
	}

	return builder.Create()
}

func compileSchema(config SchemaConfig, actions map[string]Action) (*ghostrouter.Schema, error) {
	kindName := config.ActionKind
	if kindName == "" {
		kindName = ghostrouter.RowActionKind.String()
	}

	kind, err := ghostrouter.ParseActionKind(kindName)
	if err != nil {
		return nil, &ghostrouter.ConfigurationError{Schema: config.Name, Err: err}
	}

	builder := ghostrouter.BuildSchema(config.Name, kind)
	for _, tableConfig := range config.Tables {
		table, err := compileTable(tableConfig, kind, actions)
		if err != nil {
			return nil, &ghostrouter.ConfigurationError{Schema: config.Name, Table: tableConfig.Name, Err: err}
		}
		builder.AddTableBuilder(table)
	}

	return builder.Create()
}

func compileTable(config TableConfig, kind ghostrouter.ActionKind, actions map[string]Action) (*ghostrouter.TableBuilder, error) {
	handler, ok := actions[strings.ToLower(config.Action)]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", config.Action)
	}

	table := ghostrouter.BuildTable(config.Name).Columns(config.Columns...)

	switch kind {
	case ghostrouter.RowActionKind:
		table.Action(ghostrouter.RowAction(handler))
	case ghostrouter.EventTypeActionKind:
		table.Action(ghostrouter.EventTypeAction(handler))
	}

	for _, name := range config.Forbid {
		eventType, err := ghostrouter.ParseEventType(name)
		if err != nil {
			return nil, err
		}
		table.ForbidEventType(eventType)
	}

	cond, err := compileCondition(config.Condition, config.SkipDeleted)
	if err != nil {
		return nil, err
	}
	if cond != nil {
		table.Condition(cond)
	}

	return table, nil
}

func compileCondition(config *ConditionConfig, skipDeleted bool) (condition.Condition, error) {
	if config == nil {
		if skipDeleted {
			return condition.NotDeletedContainer, nil
		}
		return nil, nil
	}

	builder := condition.NewContainerBuilder()
	if skipDeleted {
		builder.Must(condition.NotDeleted)
	}

	groups := []struct {
		name    string
		configs []FieldConditionConfig
		add     func(...condition.Condition) *condition.ContainerBuilder
	}{
		{"must", config.Must, builder.Must},
		{"should", config.Should, builder.Should},
		{"must_not", config.MustNot, builder.MustNot},
	}

	for _, group := range groups {
		for i, fieldConfig := range group.configs {
			cond, err := CompileFieldCondition(fieldConfig)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", group.name, i, err)
			}
			group.add(cond)
		}
	}

	return builder.Create(), nil
}

// CompileFieldCondition converts the reference values with the declared
// type up front, so a typo in a rule fails the load instead of silently
// never matching.
func CompileFieldCondition(config FieldConditionConfig) (*condition.FieldCondition, error) {
	if config.Field == "" {
		return nil, errors.New("field is empty")
	}

	convert, err := condition.ConverterByName(config.Type)
	if err != nil {
		return nil, err
	}

	var cond *condition.FieldCondition
	switch strings.ToLower(config.Op) {
	case "", "eq", "equal":
		if config.Value == nil {
			return nil, fmt.Errorf("%s: value is required", config.Field)
		}
		ref, err := reference(convert, config.Value)
		if err != nil {
			return nil, err
		}
		cond = condition.Equal(config.Field, ref, convert)
	case "in":
		if len(config.Values) == 0 {
			return nil, fmt.Errorf("%s: values is empty", config.Field)
		}
		refs := make([]any, len(config.Values))
		for i, value := range config.Values {
			if refs[i], err = reference(convert, value); err != nil {
				return nil, err
			}
		}
		cond = condition.In(config.Field, convert, refs...)
	case "range":
		lower, err := bound(convert, config.Gt, config.Gte)
		if err != nil {
			return nil, fmt.Errorf("%s: lower bound: %w", config.Field, err)
		}
		upper, err := bound(convert, config.Lt, config.Lte)
		if err != nil {
			return nil, fmt.Errorf("%s: upper bound: %w", config.Field, err)
		}
		if lower == nil && upper == nil {
			return nil, fmt.Errorf("%s: range needs at least one bound", config.Field)
		}
		cond = condition.Range(config.Field, convert, lower, upper)
	default:
		return nil, fmt.Errorf("%s: unknown op %q", config.Field, config.Op)
	}

	if config.Not {
		cond = cond.Negate()
	}
	return cond, nil
}

func bound(convert condition.Converter, exclusive, inclusive interface{}) (*condition.Bound, error) {
	switch {
	case exclusive != nil && inclusive != nil:
		return nil, errors.New("both exclusive and inclusive bounds are set")
	case exclusive != nil:
		v, err := reference(convert, exclusive)
		if err != nil {
			return nil, err
		}
		return condition.Exclusive(v), nil
	case inclusive != nil:
		v, err := reference(convert, inclusive)
		if err != nil {
			return nil, err
		}
		return condition.Inclusive(v), nil
	}
	return nil, nil
}

// reference runs a configured value through the same converter as the
// column values it will be compared to.
func reference(convert condition.Converter, value interface{}) (any, error) {
	switch v := value.(type) {
	case string:
		return convert(v)
	case time.Time:
		// YAML timestamps arrive parsed, DATE columns only have a day.
		if ref, err := convert(v.UTC().Format(condition.MySQLDatetimeLayout)); err == nil {
			return ref, nil
		}
		return convert(v.UTC().Format("2006-01-02"))
	default:
		return convert(fmt.Sprint(v))
	}
}
