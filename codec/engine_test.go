package codec

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillstore/quill/schema"
)

type money struct {
	Amount   float64
	Currency string
}

type user struct {
	ID     string
	Name   string
	Age    int
	Active bool
	Joined time.Time
	Bal    money
	Nick   *string
	Tags   []string
	Scores map[string]float64
	Extra  map[string]any
}

type wallet struct {
	Owner  string
	Ledger []map[string]money
}

type accountID string

type accountLevel int

type event interface {
	eventName() string
}

type userCreated struct {
	UserID string
}

func (*userCreated) eventName() string { return "user_created" }

type userDeleted struct {
	UserID string
	Reason string
}

func (*userDeleted) eventName() string { return "user_deleted" }

type auditEntry struct {
	Actor string
	What  event
}

func baseConfig() schema.Config {
	return schema.Config{
		Records: []schema.RecordSpec{
			{
				TypeID: "money",
				Type:   reflect.TypeOf(money{}),
				Fields: []schema.FieldSpec{
					{Name: "amount", GoName: "Amount", Type: schema.Float()},
					{Name: "currency", GoName: "Currency", Type: schema.String()},
				},
			},
			{
				TypeID: "user",
				Type:   reflect.TypeOf(user{}),
				Fields: []schema.FieldSpec{
					{Name: "_id", GoName: "ID", Type: schema.String()},
					{Name: "name", GoName: "Name", Type: schema.String()},
					{Name: "age", GoName: "Age", Type: schema.Int()},
					{Name: "active", GoName: "Active", Type: schema.Bool()},
					{Name: "joined", GoName: "Joined", Type: schema.Time()},
					{Name: "balance", GoName: "Bal", Type: schema.Named("money")},
					{Name: "nick", GoName: "Nick", Type: schema.Optional(schema.String())},
					{Name: "tags", GoName: "Tags", Type: schema.Seq(schema.String())},
					{Name: "scores", GoName: "Scores", Type: schema.Mapping(schema.Float())},
					{Name: "extra", GoName: "Extra", Loose: true},
				},
			},
			{
				TypeID: "wallet",
				Type:   reflect.TypeOf(wallet{}),
				Fields: []schema.FieldSpec{
					{Name: "owner", GoName: "Owner", Type: schema.String()},
					{Name: "ledger", GoName: "Ledger", Type: schema.Seq(schema.Mapping(schema.Named("money")))},
				},
			},
			{
				TypeID: "user_created",
				Type:   reflect.TypeOf(userCreated{}),
				Fields: []schema.FieldSpec{
					{Name: "user_id", GoName: "UserID", Type: schema.String()},
				},
			},
			{
				TypeID: "user_deleted",
				Type:   reflect.TypeOf(userDeleted{}),
				Fields: []schema.FieldSpec{
					{Name: "user_id", GoName: "UserID", Type: schema.String()},
					{Name: "reason", GoName: "Reason", Type: schema.String()},
				},
			},
			{
				TypeID: "audit_entry",
				Type:   reflect.TypeOf(auditEntry{}),
				Fields: []schema.FieldSpec{
					{Name: "actor", GoName: "Actor", Type: schema.String()},
					{Name: "what", GoName: "What", Type: schema.Iface(reflect.TypeOf((*event)(nil)).Elem())},
				},
			},
		},
		PseudoPrimitives: map[string]reflect.Type{
			"account_id":    reflect.TypeOf(accountID("")),
			"account_level": reflect.TypeOf(accountLevel(0)),
		},
		EncodePseudo: DefaultPseudoEncoder(),
		DecodePseudo: DefaultPseudoDecoder(),
	}
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	reg, err := schema.NewRegistry(baseConfig())
	require.NoError(t, err)
	return New(reg)
}

func sampleUser() *user {
	nick := "sam"
	return &user{
		ID:     "u1",
		Name:   "Samantha",
		Age:    34,
		Active: true,
		Joined: time.Date(2023, 4, 1, 12, 30, 0, 0, time.UTC),
		Bal:    money{Amount: 12.5, Currency: "USD"},
		Nick:   &nick,
		Tags:   []string{"admin", "beta"},
		Scores: map[string]float64{"karma": 99.5},
	}
}

func TestEncode_Record(t *testing.T) {
	e := testEngine(t)

	wire, err := e.Encode(sampleUser())
	require.NoError(t, err)

	doc, ok := wire.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user", doc[schema.TypeKey])
	assert.Equal(t, "Samantha", doc["name"])
	assert.Equal(t, int64(34), doc["age"])
	assert.Equal(t, true, doc["active"])
	assert.Equal(t, "sam", doc["nick"])
	assert.Equal(t, []any{"admin", "beta"}, doc["tags"])
	assert.Equal(t, map[string]any{"karma": 99.5}, doc["scores"])

	bal, ok := doc["balance"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "money", bal[schema.TypeKey])
	assert.Equal(t, 12.5, bal["amount"])
}

func TestRoundTrip_Record(t *testing.T) {
	e := testEngine(t)
	u := sampleUser()

	wire, err := e.Encode(u)
	require.NoError(t, err)

	got, err := e.Decode(wire, schema.Named("user"), nil)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestRoundTrip_NilOptional(t *testing.T) {
	e := testEngine(t)
	u := sampleUser()
	u.Nick = nil

	wire, err := e.Encode(u)
	require.NoError(t, err)
	doc := wire.(map[string]any)
	assert.Nil(t, doc["nick"])

	got, err := e.Decode(wire, schema.Named("user"), nil)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestRoundTrip_NestedContainers(t *testing.T) {
	e := testEngine(t)
	w := &wallet{
		Owner: "u1",
		Ledger: []map[string]money{
			{"rent": {Amount: 1200, Currency: "USD"}},
			{"food": {Amount: 300, Currency: "USD"}, "fun": {Amount: 50, Currency: "EUR"}},
		},
	}

	wire, err := e.Encode(w)
	require.NoError(t, err)

	got, err := e.Decode(wire, schema.Named("wallet"), nil)
	require.NoError(t, err)
	assert.Equal(t, w, got)

	// Sequence order is preserved on the wire
	list := wire.(map[string]any)["ledger"].([]any)
	require.Len(t, list, 2)
	_, first := list[0].(map[string]any)["rent"]
	assert.True(t, first)
}

func TestRoundTrip_LooseFields(t *testing.T) {
	e := testEngine(t)
	u := sampleUser()
	u.Extra = map[string]any{"color": "blue"}

	wire, err := e.Encode(u)
	require.NoError(t, err)
	doc := wire.(map[string]any)
	assert.Equal(t, "blue", doc["color"])

	got, err := e.Decode(wire, schema.Named("user"), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"color": "blue"}, got.(*user).Extra)
}

func TestDecode_TagPrecedence(t *testing.T) {
	e := testEngine(t)
	entry := &auditEntry{
		Actor: "root",
		What:  &userDeleted{UserID: "u2", Reason: "spam"},
	}

	wire, err := e.Encode(entry)
	require.NoError(t, err)

	got, err := e.Decode(wire, schema.Named("audit_entry"), nil)
	require.NoError(t, err)

	// The polymorphic field came back as the tagged concrete type
	deleted, ok := got.(*auditEntry).What.(*userDeleted)
	require.True(t, ok)
	assert.Equal(t, "spam", deleted.Reason)
}

func TestDecode_TagDisagreesWithExpected(t *testing.T) {
	e := testEngine(t)

	wire, err := e.Encode(&money{Amount: 1, Currency: "USD"})
	require.NoError(t, err)

	_, err = e.Decode(wire, schema.Named("user"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrDecode)

	var derr *schema.DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "user", derr.Expected)
	assert.Equal(t, "money", derr.Actual)
}

func TestDecode_UnknownTag(t *testing.T) {
	e := testEngine(t)

	doc := map[string]any{schema.TypeKey: "ghost", "name": "x"}
	_, err := e.Decode(doc, schema.Named("user"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrUnknownTypeID)
}

func TestDecode_IfaceRequiresTag(t *testing.T) {
	e := testEngine(t)

	doc := map[string]any{
		schema.TypeKey: "audit_entry",
		"actor":        "root",
		"what":         map[string]any{"user_id": "u2"},
	}
	_, err := e.Decode(doc, schema.Named("audit_entry"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrDecode)
}

func TestDecode_IfaceRejectsForeignTag(t *testing.T) {
	e := testEngine(t)

	doc := map[string]any{
		schema.TypeKey: "audit_entry",
		"actor":        "root",
		"what": map[string]any{
			schema.TypeKey: "money",
			"amount":       1.0,
			"currency":     "USD",
		},
	}
	_, err := e.Decode(doc, schema.Named("audit_entry"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrDecode)
}

func TestDecode_MissingField(t *testing.T) {
	e := testEngine(t)

	wire, err := e.Encode(sampleUser())
	require.NoError(t, err)
	doc := wire.(map[string]any)
	delete(doc, "age")

	ctx := &schema.DocContext{Path: schema.NewFieldPath("user")}
	_, err = e.Decode(doc, schema.Named("user"), ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrDecode)

	var derr *schema.DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "user.age", derr.Path)
}

func TestDecode_LegacyFieldName(t *testing.T) {
	cfg := baseConfig()
	for i := range cfg.Records {
		if cfg.Records[i].TypeID != "user" {
			continue
		}
		for j := range cfg.Records[i].Fields {
			if cfg.Records[i].Fields[j].Name == "name" {
				cfg.Records[i].Fields[j].Legacy = "full_name"
			}
		}
	}
	reg, err := schema.NewRegistry(cfg)
	require.NoError(t, err)
	e := New(reg)

	wire, err := e.Encode(sampleUser())
	require.NoError(t, err)
	doc := wire.(map[string]any)
	doc["full_name"] = doc["name"]
	delete(doc, "name")

	got, err := e.Decode(doc, schema.Named("user"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Samantha", got.(*user).Name)

	// Without the declared legacy name, the same document fails
	plain := testEngine(t)
	_, err = plain.Decode(doc, schema.Named("user"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrDecode)
}

func TestDecode_DefaultValue(t *testing.T) {
	cfg := baseConfig()
	for i := range cfg.Records {
		if cfg.Records[i].TypeID != "user" {
			continue
		}
		for j := range cfg.Records[i].Fields {
			if cfg.Records[i].Fields[j].Name == "age" {
				cfg.Records[i].Fields[j].Default = 21
				cfg.Records[i].Fields[j].HasDefault = true
			}
		}
	}
	reg, err := schema.NewRegistry(cfg)
	require.NoError(t, err)
	e := New(reg)

	wire, err := e.Encode(sampleUser())
	require.NoError(t, err)
	doc := wire.(map[string]any)
	delete(doc, "age")

	got, err := e.Decode(doc, schema.Named("user"), nil)
	require.NoError(t, err)
	assert.Equal(t, 21, got.(*user).Age)
}

type stamp struct {
	At time.Time
}

func TestDecode_Override(t *testing.T) {
	var reg *schema.Registry

	cfg := baseConfig()
	cfg.Records = append(cfg.Records, schema.RecordSpec{
		TypeID: "stamp",
		Type:   reflect.TypeOf(stamp{}),
		Fields: []schema.FieldSpec{
			{Name: "at", GoName: "At", Type: schema.Time()},
		},
		DecodeOverride: func(dec schema.Decoder, doc map[string]any, ctx *schema.DocContext, coerce bool) (any, error) {
			spec, _ := reg.LookupByTypeID("stamp")
			out, err := dec.DecodeRecordFields(spec, doc, ctx, coerce)
			if err == nil {
				return out, nil
			}
			// Older documents stored the timestamp as unix seconds
			if sec, ok := doc["at_unix"].(float64); ok {
				return &stamp{At: time.Unix(int64(sec), 0).UTC()}, nil
			}
			return nil, err
		},
	})

	reg, err := schema.NewRegistry(cfg)
	require.NoError(t, err)
	e := New(reg)

	// Current shape decodes through the default path
	ts := time.Date(2021, 7, 4, 0, 0, 0, 0, time.UTC)
	got, err := e.Decode(map[string]any{"at": ts}, schema.Named("stamp"), nil)
	require.NoError(t, err)
	assert.Equal(t, ts, got.(*stamp).At)

	// Old shape is recovered by the override
	got, err = e.Decode(map[string]any{"at_unix": float64(ts.Unix())}, schema.Named("stamp"), nil)
	require.NoError(t, err)
	assert.Equal(t, ts, got.(*stamp).At)
}

func TestDecodeCoerce(t *testing.T) {
	e := testEngine(t)

	wire, err := e.Encode(sampleUser())
	require.NoError(t, err)
	doc := wire.(map[string]any)
	doc["age"] = "34"

	_, err = e.Decode(doc, schema.Named("user"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrDecode)

	got, err := e.DecodeCoerce(doc, schema.Named("user"), nil)
	require.NoError(t, err)
	assert.Equal(t, 34, got.(*user).Age)
}

func TestDecode_JSONNumbers(t *testing.T) {
	e := testEngine(t)

	// Stores that persist documents as JSON hand integers back as float64
	wire, err := e.Encode(sampleUser())
	require.NoError(t, err)
	doc := wire.(map[string]any)
	doc["age"] = float64(34)
	doc["joined"] = "2023-04-01T12:30:00Z"

	got, err := e.Decode(doc, schema.Named("user"), nil)
	require.NoError(t, err)
	assert.Equal(t, 34, got.(*user).Age)
	assert.Equal(t, time.Date(2023, 4, 1, 12, 30, 0, 0, time.UTC), got.(*user).Joined)
}

func TestRoundTrip_PseudoPrimitives(t *testing.T) {
	e := testEngine(t)

	wire, err := e.Encode(accountID("acct-7"))
	require.NoError(t, err)
	assert.Equal(t, "acct-7", wire)

	got, err := e.Decode(wire, schema.Named("account_id"), nil)
	require.NoError(t, err)
	assert.Equal(t, accountID("acct-7"), got)

	wire, err = e.Encode(accountLevel(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), wire)

	got, err = e.Decode(wire, schema.Named("account_level"), nil)
	require.NoError(t, err)
	assert.Equal(t, accountLevel(3), got)

	// Coercion applies inside the pseudo-primitive decoder too
	_, err = e.Decode("3", schema.Named("account_level"), nil)
	require.Error(t, err)
	got, err = e.DecodeCoerce("3", schema.Named("account_level"), nil)
	require.NoError(t, err)
	assert.Equal(t, accountLevel(3), got)
}

func TestRoundTrip_TypeRef(t *testing.T) {
	e := testEngine(t)

	wire, err := e.Encode(reflect.TypeOf(money{}))
	require.NoError(t, err)
	assert.Equal(t, "type_id=money", wire)

	got, err := e.Decode(wire, schema.TypeRef(), nil)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(money{}), got)

	_, err = e.Decode("type_id=ghost", schema.TypeRef(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrUnknownTypeID)
}

func TestEncode_Unencodable(t *testing.T) {
	e := testEngine(t)

	_, err := e.Encode(func() {})
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrUnencodableType)

	type stranger struct{ X int }
	_, err = e.Encode(stranger{X: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrUnencodableType)
}

func TestDecode_NullNotOptional(t *testing.T) {
	e := testEngine(t)

	wire, err := e.Encode(sampleUser())
	require.NoError(t, err)
	doc := wire.(map[string]any)
	doc["name"] = nil

	_, err = e.Decode(doc, schema.Named("user"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrDecode)
}
