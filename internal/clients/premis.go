package clients

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	errNoObject       = errors.New("record has no object entry")
	errNoIdentifier   = errors.New("object has no identifier value")
	errTrailingRecord = errors.New("record has content after the root element")
)

// premisRecord is the subset of a PREMIS document needed to find the minted
// object identifier. Element names match regardless of namespace prefix.
type premisRecord struct {
	Objects []premisObject `xml:"object"`
}

type premisObject struct {
	Identifiers []premisIdentifier `xml:"objectIdentifier"`
}

type premisIdentifier struct {
	Type  string `xml:"objectIdentifierType"`
	Value string `xml:"objectIdentifierValue"`
}

// objectIdentifier returns the first identifier value of the first object
// in a PREMIS record.
func objectIdentifier(record []byte) (string, error) {
	var rec premisRecord
	dec := xml.NewDecoder(bytes.NewReader(record))
	if err := dec.Decode(&rec); err != nil {
		return "", fmt.Errorf("failed to parse record: %w", err)
	}
	if err := checkTrailing(dec); err != nil {
		return "", err
	}

	if len(rec.Objects) == 0 {
		return "", errNoObject
	}
	obj := rec.Objects[0]
	if len(obj.Identifiers) == 0 {
		return "", errNoIdentifier
	}
	id := strings.TrimSpace(obj.Identifiers[0].Value)
	if id == "" {
		return "", errNoIdentifier
	}
	return id, nil
}

// checkTrailing allows only whitespace, comments and processing
// instructions after the root element.
func checkTrailing(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", errTrailingRecord, err)
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return errTrailingRecord
			}
		default:
			return errTrailingRecord
		}
	}
}
