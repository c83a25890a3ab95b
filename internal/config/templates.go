package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Market Intelligence Service Configuration

[database]
# SQLite database location
path = "~/.config/market-intel/market-intel.db"

[scraping]
# Per-request timeout for source fetches
fetch_timeout = "30s"
# Retry attempts before a fetch counts as failed
max_retries = 3
# Consecutive failures before a source is flagged degraded
degraded_threshold = 3

[[scraping.sources]]
id = "alibaba-electronics"
name = "Alibaba Electronics"
kind = "alibaba"
base_url = "https://api.example.com/alibaba/listings"
enabled = true
scrape_interval = "6h"
max_items = 200
request_delay = "2s"

[[scraping.sources]]
id = "globaltrade-industrial"
name = "Global Trade Industrial"
kind = "globaltrade"
base_url = "https://api.example.com/globaltrade/listings"
enabled = true
scrape_interval = "12h"
max_items = 100
request_delay = "3s"

[analysis]
# Record window analyzed per snapshot
window = "168h"
# Minimum records before a snapshot carries full confidence
min_records = 5

[alerts]
# Thresholds are percentages unless noted
price_move = { enabled = true, threshold = 15.0 }
supply_drop = { enabled = true, threshold = 25.0 }
demand_surge = { enabled = true, threshold = 200.0 }
# Absolute average-rating drop
quality_drop = { enabled = true, threshold = 0.3 }
# Percentage-point verification-rate drop
verification_drop = { enabled = true, threshold = 5.0 }
# View floor for trend info alerts
market_trend = { enabled = true, threshold = 1000.0 }
# Consecutive scrape failures
system_health = { enabled = true, threshold = 3.0 }
# Rating floor: quality alerts fire only while average rating is below this
quality_floor = 3.5
# Verification alerts fire only while the rate is below this
verification_floor = 60.0

[dashboard]
listen_addr = ":8080"
cache_ttl = "15m"

[scheduler]
alert_interval = "30m"
health_interval = "6h"
summary_interval = "24h"
lease_ttl = "10m"
retention_days = 30

[notifications]
enabled = false
# Notification level: all, alerts_only, errors_only
level = "all"

[notifications.webhook]
enabled = false
url = ""

[notifications.email]
enabled = false
smtp_host = ""
smtp_port = 587
username = ""
password = ""
from = ""
to = ""

[logging]
level = "info"
console = true
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Created template config at %s\n", path)
	return nil
}
