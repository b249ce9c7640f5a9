package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/user/toyrsa/internal/storage"
)

type JSONFormatter struct{}

type JSONReport struct {
	Timestamp  time.Time `json:"timestamp"`
	SystemInfo any       `json:"system_info"`
	Config     any       `json:"config"`
	Result     any       `json:"result"`
	Summary    struct {
		TotalTimeString   string  `json:"total_time_string"`
		AverageTimeString string  `json:"average_time_string"`
		Throughput        float64 `json:"throughput_keys_per_sec"`
		SuccessRate       float64 `json:"success_rate"`
	} `json:"summary"`
}

type JSONKeys struct {
	Count int                  `json:"count"`
	Keys  []*storage.StoredKey `json:"keys"`
}

func (j *JSONFormatter) FormatReport(w io.Writer, report Report) error {
	result := report.Result
	output := JSONReport{
		Timestamp:  time.Now(),
		SystemInfo: report.SystemInfo,
		Config:     report.Config,
		Result:     result,
	}

	output.Summary.TotalTimeString = result.TotalTime.String()
	output.Summary.AverageTimeString = result.AverageTime.String()
	output.Summary.Throughput = result.KeysPerSecond
	if attempts := result.Generated + result.Exhausted + result.Errors; attempts > 0 {
		output.Summary.SuccessRate = float64(result.Generated) / float64(attempts)
	}

	return encode(w, output)
}

func (j *JSONFormatter) FormatKeys(w io.Writer, keys []*storage.StoredKey) error {
	if keys == nil {
		keys = []*storage.StoredKey{}
	}
	return encode(w, JSONKeys{Count: len(keys), Keys: keys})
}

func encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
