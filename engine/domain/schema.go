package domain

// AttrKind describes the value type of a filterable attribute, which in turn
// limits the operators a filter may apply to it.
type AttrKind int

const (
	KindText AttrKind = iota
	KindDate
	KindInt
)

// Canonical attribute names. These are the only names the filter algebra
// accepts; anything else is rejected with ErrInvalidField before any query
// is built.
const (
	AttrID          = "id"
	AttrVIN         = "vin"
	AttrDate        = "inspected_at"
	AttrType        = "inspection_type"
	AttrInspector   = "inspector"
	AttrRamp        = "ramp"
	AttrRailcar     = "railcar"
	AttrBay         = "bay"
	AttrModel       = "model"
	AttrDamageCount = "damage_count"
	AttrDamageCodes = "damage_codes"
	AttrDamage      = "damage"
	AttrSourceFile  = "source_file"
)

// Attribute describes one filterable column of the record schema.
// FreeText attributes compare by case-insensitive substring; coded text
// attributes compare exactly.
type Attribute struct {
	Name     string
	Kind     AttrKind
	FreeText bool
}

// Schema is the fixed whitelist of filterable attributes, aligned with the
// production inspection table. Order matters only for stable iteration.
var Schema = []Attribute{
	{Name: AttrID, Kind: KindText},
	{Name: AttrVIN, Kind: KindText},
	{Name: AttrDate, Kind: KindDate},
	{Name: AttrType, Kind: KindText, FreeText: true},
	{Name: AttrInspector, Kind: KindText, FreeText: true},
	{Name: AttrRamp, Kind: KindText},
	{Name: AttrRailcar, Kind: KindText},
	{Name: AttrBay, Kind: KindText},
	{Name: AttrModel, Kind: KindText, FreeText: true},
	{Name: AttrDamageCount, Kind: KindInt},
	{Name: AttrDamageCodes, Kind: KindText, FreeText: true},
	{Name: AttrDamage, Kind: KindText, FreeText: true},
	{Name: AttrSourceFile, Kind: KindText, FreeText: true},
}

var schemaByName = func() map[string]Attribute {
	m := make(map[string]Attribute, len(Schema))
	for _, a := range Schema {
		m[a.Name] = a
	}
	return m
}()

// AttributeByName looks up a whitelisted attribute by canonical name.
func AttributeByName(name string) (Attribute, bool) {
	a, ok := schemaByName[name]
	return a, ok
}

// AttributeNames returns the canonical names in schema order.
func AttributeNames() []string {
	names := make([]string, len(Schema))
	for i, a := range Schema {
		names[i] = a.Name
	}
	return names
}
