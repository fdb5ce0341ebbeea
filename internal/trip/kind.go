package trip

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/maruel/ksid"
)

// Kind names one of the shared documents. Its value is the document path.
type Kind string

// Document kinds.
const (
	KindRoster   Kind = "trekkers"
	KindTasks    Kind = "tasks"
	KindFlights  Kind = "flights"
	KindPrices   Kind = "flight-prices"
	KindPacking  Kind = "packing-items"
	KindChat     Kind = "chat"
	KindTraining Kind = "training"
)

var kindTypes = map[Kind]reflect.Type{
	KindRoster:   reflect.TypeFor[Roster](),
	KindTasks:    reflect.TypeFor[TaskList](),
	KindFlights:  reflect.TypeFor[FlightList](),
	KindPrices:   reflect.TypeFor[PriceHistory](),
	KindPacking:  reflect.TypeFor[PackingList](),
	KindChat:     reflect.TypeFor[ChatLog](),
	KindTraining: reflect.TypeFor[Training](),
}

// Kinds returns every document kind, in tab order.
func Kinds() []Kind {
	return []Kind{KindRoster, KindTasks, KindFlights, KindPrices, KindPacking, KindChat, KindTraining}
}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kindTypes[k]; !ok {
		return "", fmt.Errorf("unknown document kind %q", s)
	}
	return k, nil
}

// Path returns the store path holding the document.
func (k Kind) Path() string {
	return string(k)
}

// Schema returns the JSON Schema of the document.
func (k Kind) Schema() (*jsonschema.Schema, error) {
	t, ok := kindTypes[k]
	if !ok {
		return nil, fmt.Errorf("unknown document kind %q", string(k))
	}
	r := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeFor[ksid.ID]() {
				return &jsonschema.Schema{Type: "string", Description: "Sortable record id."}
			}
			return nil
		},
	}
	s := r.ReflectFromType(t)
	s.Title = string(k)
	return s, nil
}

// Validate decodes raw as the document and checks it. JSON null is valid: it
// means the document is absent.
func (k Kind) Validate(raw json.RawMessage) error {
	t, ok := kindTypes[k]
	if !ok {
		return fmt.Errorf("unknown document kind %q", string(k))
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	v := reflect.New(t)
	if err := json.Unmarshal(raw, v.Interface()); err != nil {
		return fmt.Errorf("%s: %w", k, err)
	}
	if val, ok := v.Elem().Interface().(interface{ Validate() error }); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}
