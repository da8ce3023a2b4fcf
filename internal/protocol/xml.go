package protocol

import (
	"encoding/xml"
	"fmt"
	"net/http"
)

// ErrorEntry is one {code, message} pair of an error response.
type ErrorEntry struct {
	Code    int    `xml:"environet:ErrorCode"`
	Message string `xml:"environet:ErrorMessage"`
}

// ErrorResponse is the XML body returned for every failed exchange request.
type ErrorResponse struct {
	XMLName xml.Name     `xml:"environet:ErrorResponse"`
	Errors  []ErrorEntry `xml:"environet:Error"`
}

// RowOutcome describes what happened to a single resolved observation row.
type RowOutcome string

// Row outcomes of the upload path.
const (
	RowSaved   RowOutcome = "saved"
	RowUpdated RowOutcome = "updated"
	RowSkipped RowOutcome = "skipped"
)

// RowStatus is the per-row result of a processed upload document. A skipped
// row carries the reason; partial success is expected and not an error.
type RowStatus struct {
	PointID string     `xml:"environet:MonitoringPointId"`
	Symbol  string     `xml:"environet:PropertySymbol"`
	Outcome RowOutcome `xml:"environet:Outcome"`
	Reason  string     `xml:"environet:Reason,omitempty"`
}

// UploadStatistics is the XML body returned for a processed upload request.
type UploadStatistics struct {
	XMLName      xml.Name    `xml:"environet:UploadStatistics"`
	ReceivedRows int         `xml:"environet:ReceivedRows"`
	SavedRows    int         `xml:"environet:SavedRows"`
	UpdatedRows  int         `xml:"environet:UpdatedRows"`
	SkippedRows  int         `xml:"environet:SkippedRows"`
	Rows         []RowStatus `xml:"environet:Row"`
}

// NewUploadStatistics tallies per-row outcomes into a statistics body.
func NewUploadStatistics(rows []RowStatus) UploadStatistics {
	stats := UploadStatistics{ReceivedRows: len(rows), Rows: rows}
	for _, row := range rows {
		switch row.Outcome {
		case RowSaved:
			stats.SavedRows++
		case RowUpdated:
			stats.UpdatedRows++
		case RowSkipped:
			stats.SkippedRows++
		}
	}
	return stats
}

// WriteError renders err as an error-XML response with the matching HTTP
// status. Unclassified errors degrade to a generic server error with the
// remote address appended as a secondary audit entry.
func WriteError(w http.ResponseWriter, err error, remoteAddr string) {
	apiErr := Classify(err)

	resp := ErrorResponse{}
	for _, msg := range apiErr.Messages {
		resp.Errors = append(resp.Errors, ErrorEntry{Code: int(apiErr.Code), Message: msg})
	}
	if apiErr.Code == CodeServerError && remoteAddr != "" {
		resp.Errors = append(resp.Errors, ErrorEntry{
			Code:    int(CodeServerError),
			Message: fmt.Sprintf("Request origin: %s", remoteAddr),
		})
	}

	WriteXML(w, apiErr.Code.HTTPStatus(), resp)
}

// WriteXML marshals body as an XML document with the given status code.
func WriteXML(w http.ResponseWriter, status int, body any) {
	data, err := xml.MarshalIndent(body, "", "  ")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(data)
}
