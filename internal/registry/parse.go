package registry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// lookupResponse mirrors the nested organisation document returned by the
// lookup endpoint. All branches are optional; absent fields simply leave the
// corresponding Record fields unset.
type lookupResponse struct {
	Organisationer []organisation `json:"organisationer"`
}

type codeText struct {
	Kod      string `json:"kod"`
	Klartext string `json:"klartext"`
}

type organisation struct {
	JuridiskForm      *codeText          `json:"juridiskForm"`
	Organisationsnamn *organisationNames `json:"organisationsnamn"`
	Postadress        *postalAddressWrap `json:"postadressOrganisation"`
	Naringsgren       *industryWrap      `json:"naringsgrenOrganisation"`
	Organisationsdatum *struct {
		Registreringsdatum string `json:"registreringsdatum"`
	} `json:"organisationsdatum"`
	Verksam *struct {
		Kod string `json:"kod"`
	} `json:"verksamOrganisation"`
	Avregistrerad json.RawMessage `json:"avregistreradOrganisation"`
}

type organisationNames struct {
	Lista []struct {
		Namn string `json:"namn"`
	} `json:"organisationsnamnLista"`
}

type postalAddressWrap struct {
	Postadress *struct {
		Utdelningsadress string `json:"utdelningsadress"`
		Postort          string `json:"postort"`
		Postnummer       string `json:"postnummer"`
		Land             string `json:"land"`
	} `json:"postadress"`
}

type industryWrap struct {
	SNI []codeText `json:"sni"`
}

// activeMarker is the literal affirmative code on verksamOrganisation.
const activeMarker = "JA"

// Parse converts a fetch outcome into a normalized Record. It never fails:
// malformed payloads become status parse_error records, and failure outcomes
// carry their message through under the matching status tag.
func Parse(outcome Outcome, orgNumber string) Record {
	rec := Record{OrgNumber: orgNumber, QueriedAt: time.Now().UTC()}

	switch outcome.Kind {
	case OutcomeHTTPError:
		rec.Status = StatusError
		rec.Error = fmt.Sprintf("HTTP %d: %s", outcome.StatusCode, outcome.Message)
		return rec
	case OutcomeTransportError:
		rec.Status = StatusException
		rec.Error = outcome.Message
		return rec
	}

	var resp lookupResponse
	if err := json.Unmarshal(outcome.Body, &resp); err != nil {
		rec.Status = StatusParseError
		rec.Error = "parse error: " + truncate(err.Error(), 100)
		return rec
	}

	if len(resp.Organisationer) == 0 {
		rec.Status = StatusNoData
		rec.Error = "no organisation data returned"
		return rec
	}

	// The service may return several organisations; only the primary entry
	// is used.
	org := resp.Organisationer[0]
	rec.Status = StatusSuccess

	if org.JuridiskForm != nil {
		rec.LegalFormCode = org.JuridiskForm.Kod
		rec.LegalFormDescription = org.JuridiskForm.Klartext
	}

	if org.Organisationsnamn != nil && len(org.Organisationsnamn.Lista) > 0 {
		rec.Name = org.Organisationsnamn.Lista[0].Namn
	}

	if org.Postadress != nil && org.Postadress.Postadress != nil {
		addr := org.Postadress.Postadress
		rec.StreetAddress = addr.Utdelningsadress
		rec.City = addr.Postort
		rec.PostalCode = addr.Postnummer
		rec.Country = addr.Land
	}

	if org.Naringsgren != nil {
		// Placeholder entries with blank codes can precede the real
		// classification; take the first non-blank one.
		for _, sni := range org.Naringsgren.SNI {
			if strings.TrimSpace(sni.Kod) != "" {
				rec.SNICode = sni.Kod
				rec.SNIDescription = sni.Klartext
				break
			}
		}
	}

	if org.Organisationsdatum != nil {
		rec.RegistrationDate = org.Organisationsdatum.Registreringsdatum
	}

	active := org.Verksam != nil && org.Verksam.Kod == activeMarker
	rec.IsActive = &active

	deregistered := len(org.Avregistrerad) > 0 && string(org.Avregistrerad) != "null"
	rec.IsDeregistered = &deregistered

	return rec
}
