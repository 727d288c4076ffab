package rpc

import (
	"context"
	"net/http"

	"landledger/audit"
)

// AuditRunner is the slice of the auditor the RPC surface needs: trigger a
// run on demand and read back the most recent report.
type AuditRunner interface {
	Run(ctx context.Context) (*audit.Report, error)
	Latest() (*audit.Report, bool)
}

func (s *Server) handleAuditRun(r *http.Request, _ *RPCRequest) (interface{}, error) {
	if s.auditor == nil {
		return nil, &rpcError{status: http.StatusServiceUnavailable, code: codeServerError, message: "auditor not configured"}
	}
	report, err := s.auditor.Run(r.Context())
	if err != nil {
		return nil, err
	}
	return auditReportResult(report), nil
}

func (s *Server) handleAuditLatest(_ *http.Request, _ *RPCRequest) (interface{}, error) {
	if s.auditor == nil {
		return nil, &rpcError{status: http.StatusServiceUnavailable, code: codeServerError, message: "auditor not configured"}
	}
	report, ok := s.auditor.Latest()
	if !ok {
		return nil, &rpcError{status: http.StatusNotFound, code: codeNotFound, message: "no audit run recorded"}
	}
	return auditReportResult(report), nil
}

// AuditAnomalyResult is one finding on the wire.
type AuditAnomalyResult struct {
	Kind     string `json:"kind"`
	AssetID  uint64 `json:"assetId,omitempty"`
	Detail   string `json:"detail"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// AuditReportResult summarises one audit run.
type AuditReportResult struct {
	RunID       string               `json:"runId"`
	StartedAt   int64                `json:"startedAt"`
	CompletedAt int64                `json:"completedAt"`
	Anomalies   []AuditAnomalyResult `json:"anomalies"`
	CSVPath     string               `json:"csvPath,omitempty"`
	ParquetPath string               `json:"parquetPath,omitempty"`
	Digest      string               `json:"digest,omitempty"`
}

func auditReportResult(report *audit.Report) *AuditReportResult {
	if report == nil {
		return nil
	}
	anomalies := make([]AuditAnomalyResult, 0, len(report.Anomalies))
	for _, anomaly := range report.Anomalies {
		anomalies = append(anomalies, AuditAnomalyResult{
			Kind:     anomaly.Kind,
			AssetID:  anomaly.AssetID,
			Detail:   anomaly.Detail,
			Expected: anomaly.Expected,
			Actual:   anomaly.Actual,
		})
	}
	return &AuditReportResult{
		RunID:       report.RunID,
		StartedAt:   report.StartedAt.Unix(),
		CompletedAt: report.CompletedAt.Unix(),
		Anomalies:   anomalies,
		CSVPath:     report.CSVPath,
		ParquetPath: report.ParquetPath,
		Digest:      report.Digest,
	}
}
