package rates

import (
	"testing/fstest"
)

const otherPartnersJSON = `[
  {"CMS category": "sofa", "Weightclass": 45, "NL-DE-OLD": 80, "NL-DE-libero_logistics": 95, "NL-DE-OLD-tadde": 70, "NL-DE-tadde": 75, "NL-NL-swdevries": 40},
  {"CMS category": "sofa", "Weightclass": "45.0", "NL-DE-OLD": 1, "NL-DE-libero_logistics": 1},
  {"CMS category": "armchair", "Weightclass": 20.5, "NL-NL-tadde": 35, "DE-DE-libero_logistics": 0, "NL-NL-transpoksi": null},
  {"CMS category": "table", "Weightclass": 30, "NL-BE-tadde": "42,50"}
]`

// column-oriented, as written by pandas DataFrame.to_json()
const brengerColumnsJSON = `{
  "CMS category": {"0": "sofa", "1": "chair", "2": "sofa"},
  "Weightclass": {"0": 45.0, "1": 5, "2": 60},
  "NL-NL": {"0": 65, "1": 25, "2": 89.5},
  "NL-DE": {"0": 120, "1": null, "2": 150}
}`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"prijslijst_other_partners.json": {Data: []byte(otherPartnersJSON)},
		"prijslijst_brenger.json":        {Data: []byte(brengerColumnsJSON)},
		"germany_libero_logistic.json":   {Data: []byte(`{"CMS category": {"0": "sofa", "1": "armchair"}, "DE": {"0": 130, "1": 85}}`)},
		"broken.json":                    {Data: []byte(`[{"Weightclass": 5}]`)},
	}
}
