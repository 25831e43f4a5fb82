// Package bureau integrates with the credit bureau over HTTP.
//
// The bureau answers with an XML document:
//
//	<report found="true">
//	  <score>720</score>
//	  <days_past_due>0</days_past_due>
//	  <obligations_in_arrears>0</obligations_in_arrears>
//	  <charge_offs>false</charge_offs>
//	  <recently_normalized>false</recently_normalized>
//	</report>
package bureau

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

// ErrMalformedReport is returned when a bureau response cannot be parsed.
var ErrMalformedReport = errors.New("malformed bureau report")

// ParseReport parses a bureau XML response. It returns nil, nil when the
// bureau reports no data for the document.
func ParseReport(raw []byte) (*domain.BureauReport, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	root := doc.FindElement("//report")
	if root == nil {
		return nil, fmt.Errorf("%w: report element not found", ErrMalformedReport)
	}
	if strings.EqualFold(root.SelectAttrValue("found", "true"), "false") {
		return nil, nil
	}

	report := &domain.BureauReport{}
	var err error

	if report.Score, err = intElement(root, "score", true); err != nil {
		return nil, err
	}
	if report.HistoricalDaysPastDue, err = intElement(root, "days_past_due", false); err != nil {
		return nil, err
	}
	if report.ObligationsInArrears, err = intElement(root, "obligations_in_arrears", true); err != nil {
		return nil, err
	}
	if report.HistoricalChargeOffs, err = boolElement(root, "charge_offs"); err != nil {
		return nil, err
	}
	if report.RecentlyNormalized, err = boolElement(root, "recently_normalized"); err != nil {
		return nil, err
	}

	if report.HistoricalDaysPastDue < 0 || report.ObligationsInArrears < 0 {
		return nil, fmt.Errorf("%w: negative delinquency counts", ErrMalformedReport)
	}

	return report, nil
}

func intElement(root *etree.Element, tag string, required bool) (int, error) {
	el := root.FindElement("./" + tag)
	if el == nil {
		if required {
			return 0, fmt.Errorf("%w: %s element not found", ErrMalformedReport, tag)
		}
		return 0, nil
	}

	v, err := strconv.Atoi(strings.TrimSpace(el.Text()))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformedReport, tag, err)
	}
	return v, nil
}

func boolElement(root *etree.Element, tag string) (bool, error) {
	el := root.FindElement("./" + tag)
	if el == nil {
		return false, nil
	}

	v, err := strconv.ParseBool(strings.TrimSpace(el.Text()))
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrMalformedReport, tag, err)
	}
	return v, nil
}
