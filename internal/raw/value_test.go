package raw

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) Value {
	t.Helper()
	v, err := Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func TestGetTreatsFalsyAsAbsent(t *testing.T) {
	v := mustParse(t, `{
		"name": "PS",
		"empty": "",
		"zero": 0,
		"no": false,
		"nothing": null,
		"list": [],
		"obj": {},
		"nested": {"inner": {"leaf": "x"}}
	}`)

	assert.Equal(t, "PS", v.Str("name", "def"))
	for _, key := range []string{"empty", "zero", "no", "nothing", "list", "obj", "missing"} {
		assert.True(t, v.Get(key).IsNull(), key)
		assert.Equal(t, "def", v.Str(key, "def"), key)
	}

	assert.Equal(t, "x", v.Path("nested", "inner", "leaf").Text(""))
	assert.Equal(t, "", v.Path("nested", "missing", "leaf").Text(""))
	assert.Equal(t, "", v.Get("name").Get("child").Text(""))
}

func TestTextRendersScalars(t *testing.T) {
	v := mustParse(t, `{"n": 12345, "f": 1.5, "s": "abc", "b": true, "arr": [1]}`)

	assert.Equal(t, "12345", v.Str("n", ""))
	assert.Equal(t, "1.5", v.Str("f", ""))
	assert.Equal(t, "abc", v.Str("s", ""))
	assert.Equal(t, "true", v.Str("b", ""))
	assert.Equal(t, "def", v.Str("arr", "def"))
}

func TestToList(t *testing.T) {
	single := mustParse(t, `{"GP": "PS"}`)
	many := mustParse(t, `[{"GP": "PS"}, {"GP": "PSD"}]`)

	assert.Len(t, ToList(single), 1)
	assert.Len(t, ToList(many), 2)
	assert.Empty(t, ToList(Value{}))
	assert.Len(t, ToList(NewString("x")), 1)
}

func TestJoinFieldSkipsFalsyElements(t *testing.T) {
	list := ToList(mustParse(t, `[{"nome": "Ana"}, null, {}, {"nome": "Rui"}, {"GP": "PS"}]`))

	assert.Equal(t, "Ana|Rui|", JoinField(list, "nome"))
	assert.Equal(t, []string{"", "", "PS"}, Field(list, "GP"))
}

func TestDecodeFeed(t *testing.T) {
	bare := []byte(`[{"IniId": "1"}, {"IniId": "2"}]`)
	items, err := DecodeFeed(bare)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	enveloped := []byte(`{"ArrayOfPt_gov_ar_objectos_iniciativas_DetalhePesquisaIniciativasOut":
		{"pt_gov_ar_objectos_iniciativas_DetalhePesquisaIniciativasOut": {"iniId": "7"}}}`)
	items, err = DecodeFeed(enveloped)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "7", items[0].Str("iniId", ""))

	_, err = DecodeFeed([]byte(`"nope"`))
	assert.Error(t, err)

	_, err = DecodeFeed([]byte(`{broken`))
	assert.Error(t, err)
}

func TestMarshalRoundTripKeepsNumbers(t *testing.T) {
	v := mustParse(t, `{"id": 123456789012, "t": "x"}`)
	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 123456789012, "t": "x"}`, string(out))
}

func TestGetFallsBackToOtherFirstLetterCase(t *testing.T) {
	v := mustParse(t, `{"iniId": "7", "IniNr": "3", "iniNr": "9", "GP": "PS", "Nome": "Ana"}`)

	assert.Equal(t, "7", v.Str("IniId", ""))
	assert.Equal(t, "3", v.Str("IniNr", ""), "exact spelling wins")
	assert.Equal(t, "9", v.Str("iniNr", ""), "exact spelling wins")
	assert.Equal(t, "Ana", v.Str("nome", ""))
	assert.Equal(t, "PS", v.Str("GP", ""))
	assert.Equal(t, "", v.Str("iniTitulo", ""))
}

func TestToListUnwrapsEnvelopes(t *testing.T) {
	one := mustParse(t, `{"pt_gov_ar_objectos_VotacaoOut": {"resultado": "Aprovado"}}`)
	many := mustParse(t, `{"pt_gov_ar_objectos_iniciativas_EventosOut": [{"fase": "Entrada"}, {"fase": "Votação"}]}`)
	strs := mustParse(t, `{"string": ["4", "5"]}`)
	plain := mustParse(t, `{"nome": "Ana"}`)
	wsgode := mustParse(t, `{"pt_ar_wsgode_objectos_DadosCargoDeputado": [{"carDes": "Presidente"}, {"carDes": "Secretário"}]}`)

	require.Len(t, ToList(one), 1)
	assert.Equal(t, "Aprovado", ToList(one)[0].Str("resultado", ""))
	assert.Len(t, ToList(many), 2)
	assert.Equal(t, []string{"4", "5"}, Texts(ToList(strs)))
	assert.Equal(t, "Ana", ToList(plain)[0].Str("nome", ""))
	assert.Len(t, ToList(wsgode), 2)
}
