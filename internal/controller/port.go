package controller

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/vessel-labs/vessel/models"
)

const (
	portRangeLow  = 10000
	portRangeHigh = 65000
	portAttempts  = 100
)

// assignHostPort picks a free host port in [10000, 65000) for dep, retrying
// on collision against the deployment's already-allocated set. This
// resolves the source's open TODO: a per-deployment allocated-ports set
// persisted in the store, rather than trusting an unchecked random draw.
func assignHostPort(dep *models.Deployment) (int, error) {
	for i := 0; i < portAttempts; i++ {
		n, err := randomPort()
		if err != nil {
			return 0, err
		}
		if dep.ClaimPort(n) {
			return n, nil
		}
	}
	return 0, models.DeployError(
		fmt.Sprintf("could not allocate a free host port for deployment %s after %d attempts", dep.ID, portAttempts),
		nil,
	)
}

func randomPort() (int, error) {
	span := big.NewInt(int64(portRangeHigh - portRangeLow))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return 0, fmt.Errorf("controller: random port: %w", err)
	}
	return portRangeLow + int(n.Int64()), nil
}
