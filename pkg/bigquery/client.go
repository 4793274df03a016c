package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/walletcore/pkg/config"
	"github.com/angelmondragon/walletcore/pkg/logger"
)

// metadataTimeout bounds the existence checks run at boot and on Ping.
const metadataTimeout = 10 * time.Second

var errNotInitialized = errors.New("bigquery client not initialized")

// Client streams ledger rows into the warehouse dataset. The dataset and
// the ledger table are created by infrastructure, never by this process.
type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	ledger  string
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	dataset := strings.TrimSpace(cfg.Dataset)
	ledger := strings.TrimSpace(cfg.LedgerTable)
	switch {
	case project == "":
		return nil, errors.New("gcp project id is required")
	case dataset == "":
		return nil, errors.New("bigquery dataset is required")
	case ledger == "":
		return nil, errors.New("bigquery ledger table is required")
	}

	raw, err := bigquery.NewClient(ctx, project, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	c := &Client{client: raw, dataset: raw.Dataset(dataset), ledger: ledger}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": dataset, "table": ledger}), "bigquery client initialized")
	}
	return c, nil
}

// credentials prefers inline JSON over a key file; with neither the
// client falls back to application default credentials.
func credentials(gcp config.GCPConfig) []option.ClientOption {
	if strings.TrimSpace(gcp.CredentialsJSON) != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	}
	if strings.TrimSpace(gcp.ApplicationCredentials) != "" {
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// Ping checks that the dataset and the ledger table exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describe("dataset "+c.dataset.DatasetID, err)
	}
	if _, err := c.dataset.Table(c.ledger).Metadata(ctx); err != nil {
		return describe("table "+c.ledger, err)
	}
	return nil
}

// InsertRows streams rows into table. Rows implementing bigquery.ValueSaver
// supply their own insert ids for best effort dedupe.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errors.New("bigquery table name is required")
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func describe(what string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("bigquery %s does not exist", what)
	}
	return fmt.Errorf("check bigquery %s: %w", what, err)
}
