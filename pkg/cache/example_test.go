package cache_test

import (
	"context"
	"fmt"
	"time"

	"github.com/doorkeeper/intercom/pkg/cache"
	"github.com/doorkeeper/intercom/pkg/central"
	"github.com/doorkeeper/intercom/pkg/connector/ble"
)

func Example() {
	const cacheFilename = "credentials.json"

	var credentials *cache.Cache
	var err error
	if credentials, err = cache.ImportFromFile(cacheFilename); err != nil {
		credentials = cache.New(16) // Hold credentials for up to 16 doors.
	}

	conn, err := ble.NewConnection(context.Background(), "front-gate", nil)
	if err != nil {
		panic(err)
	}
	defer conn.Close()
	c := central.New(conn)

	entry, ok := credentials.Get("front-gate")
	if !ok {
		fmt.Println("no cached credential for front-gate")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.UnlockSymmetricDemo(ctx, central.SymmetricDemoConfig{CredentialPayload: []byte(entry.Credential)}); err != nil {
		panic(err)
	}

	credentials.Put("front-gate", cache.Entry{Credential: entry.Credential, CachedAt: time.Now()})
	if err := credentials.ExportToFile(cacheFilename); err != nil {
		fmt.Printf("error updating credential cache: %s\n", err)
	}
}
