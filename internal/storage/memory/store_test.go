package memory

import (
	"testing"

	"github.com/cleared-dev/recon/internal/storage"
	"github.com/cleared-dev/recon/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return NewStore()
	})
}
