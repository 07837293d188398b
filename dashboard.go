package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// Server is the read-only web dashboard over the run history database.
type Server struct {
	port int
}

func NewServer(port int) *Server {
	return &Server{port: port}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/results", s.handleResults)

	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("Dashboard server listening on http://localhost%s", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := GetExecutionStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := RecentRuns(20)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		out = append(out, map[string]interface{}{
			"id":             run.ID,
			"started_at":     run.StartedAt,
			"finished_at":    run.FinishedAt,
			"total":          run.Total,
			"completed":      run.Completed,
			"file_not_found": run.FileNotFound,
			"launch_errors":  run.LaunchErrors,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		http.Error(w, "missing run parameter", http.StatusBadRequest)
		return
	}

	results, err := ResultsForRun(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(results))
	for _, res := range results {
		out = append(out, map[string]interface{}{
			"job_name":    res.JobName,
			"input_path":  res.InputPath,
			"status":      string(res.Status),
			"exit_code":   res.ExitCode,
			"duration_ms": res.DurationMs,
			"error":       res.Error,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	tmpl := `<!DOCTYPE html>
<html>
<head>
	<title>simbatch Dashboard</title>
	<style>
	body {
		font-family: 'Segoe UI', Roboto, sans-serif;
		margin: 0;
		padding: 20px;
		background-color: #0d1117;
		color: #e6edf3;
	}

	.container {
		max-width: 1100px;
		margin: 0 auto;
		background: #161b22;
		padding: 30px;
		border-radius: 10px;
	}

	h1, h2 {
		color: #58a6ff;
		border-bottom: 2px solid #30363d;
		padding-bottom: 10px;
	}

	.stats-grid {
		display: grid;
		grid-template-columns: repeat(auto-fit, minmax(180px, 1fr));
		gap: 20px;
		margin: 30px 0;
	}

	.stat-card {
		background: #21262d;
		padding: 15px 20px;
		border-radius: 8px;
		border: 1px solid #30363d;
	}

	.stat-label {
		font-size: 12px;
		color: #8b949e;
		text-transform: uppercase;
	}

	.stat-value {
		font-size: 26px;
		font-weight: bold;
		margin-top: 8px;
	}

	table {
		width: 100%;
		border-collapse: collapse;
		margin-top: 15px;
		border: 1px solid #30363d;
	}

	th, td {
		padding: 10px;
		text-align: left;
		border-bottom: 1px solid #30363d;
	}

	th {
		background-color: #21262d;
		color: #58a6ff;
		text-transform: uppercase;
		font-size: 13px;
	}

	.success { color: #2ecc71; }
	.failure { color: #e74c3c; }

	.refresh-info {
		text-align: right;
		color: #8b949e;
		font-size: 12px;
		margin-top: 15px;
	}
	</style>
</head>
<body>
	<div class="container">
		<h1>simbatch Dashboard</h1>

		<div class="stats-grid">
			<div class="stat-card"><div class="stat-label">Runs</div><div class="stat-value" id="total-runs">-</div></div>
			<div class="stat-card"><div class="stat-label">Jobs Processed</div><div class="stat-value" id="total-processed">-</div></div>
			<div class="stat-card"><div class="stat-label">Succeeded</div><div class="stat-value success" id="total-succeeded">-</div></div>
			<div class="stat-card"><div class="stat-label">Non-zero Exit</div><div class="stat-value failure" id="total-nonzero">-</div></div>
			<div class="stat-card"><div class="stat-label">Success Rate</div><div class="stat-value" id="success-rate">-</div></div>
			<div class="stat-card"><div class="stat-label">Avg Duration</div><div class="stat-value" id="avg-duration">-</div></div>
		</div>

		<h2>Recent Runs</h2>
		<table>
			<thead><tr><th>Run ID</th><th>Started</th><th>Jobs</th><th>Completed</th><th>Not Found</th><th>Launch Errors</th></tr></thead>
			<tbody id="runs-body"></tbody>
		</table>

		<div class="refresh-info">Auto-updating every 5 seconds</div>
	</div>

	<script>
		function updateStats() {
			fetch('/api/stats')
				.then(r => r.json())
				.then(data => {
					document.getElementById('total-runs').textContent = data.total_runs || 0;
					document.getElementById('total-processed').textContent = data.total_processed || 0;
					document.getElementById('total-succeeded').textContent = data.total_succeeded || 0;
					document.getElementById('total-nonzero').textContent = data.total_nonzero_exit || 0;
					document.getElementById('success-rate').textContent = (data.success_rate || 0).toFixed(1) + '%';
					document.getElementById('avg-duration').textContent = (data.avg_duration_ms || 0).toFixed(0) + 'ms';
				});
		}

		function updateRuns() {
			fetch('/api/runs')
				.then(r => r.json())
				.then(data => {
					const tbody = document.getElementById('runs-body');
					tbody.innerHTML = '';
					data.forEach(run => {
						const row = document.createElement('tr');
						const started = run.started_at ? new Date(run.started_at).toLocaleString() : '-';
						row.innerHTML = '<td>' + run.id + '</td><td>' + started + '</td><td>' + run.total +
							'</td><td class="success">' + run.completed + '</td><td class="failure">' + run.file_not_found +
							'</td><td class="failure">' + run.launch_errors + '</td>';
						tbody.appendChild(row);
					});
				});
		}

		function updateAll() {
			updateStats();
			updateRuns();
		}

		updateAll();
		setInterval(updateAll, 5000);
	</script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, tmpl)
}
