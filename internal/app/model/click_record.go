package model

// Record field names, also usable as {placeholders} in templates.
const (
	FieldKeyword   = "keyword"
	FieldLongURL   = "longurl"
	FieldTimestamp = "timestamp"
	FieldIP        = "ip"
	FieldReferrer  = "referrer"
	FieldUserAgent = "user_agent"
	FieldLocation  = "location"
	FieldBrowser   = "browser"
	FieldOS        = "os"
)

// Unknown is the value used for lookups that came back empty.
const Unknown = "Unknown"

// RecordField is a single named value of a ClickRecord.
type RecordField struct {
	Name  string
	Value string
}

// ClickRecord is the enriched view of one click. Fields keep insertion order.
type ClickRecord struct {
	fields []RecordField
}

// NewClickRecord starts a record with the fields every click has.
func NewClickRecord(keyword, longURL, timestamp string) *ClickRecord {
	r := &ClickRecord{}
	r.Set(FieldKeyword, keyword)
	r.Set(FieldLongURL, longURL)
	r.Set(FieldTimestamp, timestamp)
	return r
}

// Set adds name or overwrites it in place.
func (r *ClickRecord) Set(name, value string) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = value
			return
		}
	}
	r.fields = append(r.fields, RecordField{Name: name, Value: value})
}

func (r *ClickRecord) Get(name string) (string, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

func (r *ClickRecord) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

func (r *ClickRecord) Keyword() string {
	v, _ := r.Get(FieldKeyword)
	return v
}

func (r *ClickRecord) LongURL() string {
	v, _ := r.Get(FieldLongURL)
	return v
}

// Fields returns a copy of the record in insertion order.
func (r *ClickRecord) Fields() []RecordField {
	return append([]RecordField(nil), r.fields...)
}
