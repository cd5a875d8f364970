package azure

import (
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/gobeaver/resfs"
)

func init() {
	resfs.RegisterDriver("azure", func(spec resfs.MountSpec, cfg *resfs.Config) (resfs.Device, error) {
		containerName := cfg.AzureContainerName
		if c, ok := spec.Options["container"]; ok {
			containerName = c
		}

		if cfg.AzureAccountName == "" || cfg.AzureAccountKey == "" {
			return nil, fmt.Errorf("azure account name and key are required")
		}
		if containerName == "" {
			return nil, fmt.Errorf("azure container name is required")
		}

		// Build service URL
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AzureAccountName)
		if cfg.AzureEndpoint != "" {
			serviceURL = cfg.AzureEndpoint
		}

		// Create shared key credential
		cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure credential: %w", err)
		}

		// Create client
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure client: %w", err)
		}

		containerClient := client.ServiceClient().NewContainerClient(containerName)
		return New(containerClient, WithPrefix(spec.Root)), nil
	})
}
