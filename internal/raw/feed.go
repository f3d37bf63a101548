package raw

import "fmt"

// Older dumps wrap the initiative list in two SOAP-derived envelope keys.
const (
	envelopeOuter = "ArrayOfPt_gov_ar_objectos_iniciativas_DetalhePesquisaIniciativasOut"
	envelopeInner = "pt_gov_ar_objectos_iniciativas_DetalhePesquisaIniciativasOut"
)

// DecodeFeed parses a full initiatives dump. Both the bare array published
// since legislature XVI and the enveloped object used before are accepted.
func DecodeFeed(data []byte) ([]Value, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	switch doc.Kind() {
	case Array:
		return doc.Items(), nil
	case Object:
		return ToList(doc.Path(envelopeOuter, envelopeInner)), nil
	default:
		return nil, fmt.Errorf("unexpected feed document of kind %s", doc.Kind())
	}
}
