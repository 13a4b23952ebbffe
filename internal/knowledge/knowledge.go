// Package knowledge retrieves regulatory documents that ground carbon audits.
package knowledge

import "context"

type Document struct {
	Content  string  `json:"content"`
	Source   string  `json:"source"`
	Distance float64 `json:"distance"`
}

// Retriever returns up to limit documents ordered by ascending distance to text.
type Retriever interface {
	Query(ctx context.Context, text string, limit int) ([]Document, error)
}

type Ingester interface {
	Ingest(ctx context.Context, content, source string) error
}

var ComplianceCorpus = []Document{
	{
		Content: "EU ETS 2025: Shipping companies must surrender allowances for 40% of verified emissions reported for 2024. By 2027, this increases to 100%.",
		Source:  "EU Commission Directive 2023/959",
	},
	{
		Content: "Scope 3 Emissions: Logistics providers must report indirect emissions from transportation and distribution. The carbon intensity cap for container ships is 8g CO2/ton-km.",
		Source:  "CSRD Reporting Standard E1",
	},
	{
		Content: "Carbon Border Adjustment Mechanism (CBAM): Importers of cement, iron, steel, aluminum, fertilizers, electricity and hydrogen must buy certificates corresponding to the carbon price that would have been paid had the goods been produced under the EU's carbon pricing rules.",
		Source:  "Regulation (EU) 2023/956",
	},
}

func Seed(ctx context.Context, ing Ingester, docs []Document) error {
	for _, d := range docs {
		if err := ing.Ingest(ctx, d.Content, d.Source); err != nil {
			return err
		}
	}
	return nil
}

type Base interface {
	Retriever
	Ingester
}
