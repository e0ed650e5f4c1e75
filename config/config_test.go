package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestNoZeroFields(t *testing.T) {
	cfg := Default()

	for _, field := range visit(newVar(*cfg), "Config", false) {
		assert.Fail(t, "zero-value field", field)
	}
}

type variable struct {
	Type  reflect.Type
	Value reflect.Value
}

func newVar(a any) variable {
	return variable{reflect.TypeOf(a), reflect.ValueOf(a)}
}

func visit(a variable, name string, nullable bool) (fields []string) {
	if a.Type.Kind() == reflect.Struct {
		for field := 0; field < a.Value.NumField(); field++ {
			v1 := variable{a.Type.Field(field).Type, a.Value.Field(field)}
			fieldname := a.Type.Field(field).Name
			isNullable := a.Type.Field(field).Tag.Get("test") == "nullable"
			fields = append(fields, visit(v1, name+"."+fieldname, isNullable)...)
		}

		return fields
	}

	if a.Value.IsZero() && !nullable {
		return []string{name}
	}

	return nil
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoad(t *testing.T) {
	t.Run("overlay", func(t *testing.T) {
		doc := `{
			"NET": {"NoDelay": true, "Backlog": 128},
			"Idle": {"Interval": "5s"},
			"Deadlines": {"Request": "1m30s", "Response": 2000000000},
			"Workers": {"Number": 4}
		}`
		cfg, err := Load(strings.NewReader(doc), nil)
		require.NoError(t, err)
		require.True(t, cfg.NET.NoDelay)
		require.Equal(t, 128, cfg.NET.Backlog)
		require.Equal(t, 5*time.Second, cfg.Idle.Interval)
		require.Equal(t, 90*time.Second, cfg.Deadlines.Request)
		require.Equal(t, 2*time.Second, cfg.Deadlines.Response)
		require.Equal(t, 4, cfg.Workers.Number)
		// untouched fields keep their defaults
		require.Equal(t, Default().Idle.MaxConnections, cfg.Idle.MaxConnections)
		require.Equal(t, Default().Body, cfg.Body)
	})

	t.Run("base is not modified", func(t *testing.T) {
		base := Default()
		_, err := Load(strings.NewReader(`{"Headers": {"MaxNumber": 10}}`), base)
		require.NoError(t, err)
		require.Equal(t, 200, base.Headers.MaxNumber)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(strings.NewReader(`{"Idle": {"Interval": "forever"}}`), nil)
		require.Error(t, err)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Load(strings.NewReader(`{"Idle": {"Whatever": 1}}`), nil)
		require.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(strings.NewReader(`{"Body": {"ChunkSize": 0}}`), nil)
		require.ErrorContains(t, err, "Body.ChunkSize")
	})
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.NET.ReadBufferSize = 0
	cfg.Idle.MaxConnections = -1
	cfg.Events.QueueSize = 0

	err := Validate(cfg)
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 3)
}
