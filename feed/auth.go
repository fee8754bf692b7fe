package feed

import (
	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/chartfeed/chartsync"
)

type ClientAuth struct {
	ByJwt      string
	InstanceId chartsync.Id
	AppVersion string
}

// ClientId reads the client id from the jwt claims. The token is verified
// by the feed service, not here.
func (self *ClientAuth) ClientId() (chartsync.Id, error) {
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(self.ByJwt, gojwt.MapClaims{})
	if err != nil {
		return chartsync.Id{}, err
	}

	claims := token.Claims.(gojwt.MapClaims)
	if clientIdStr, ok := claims["client_id"].(string); ok {
		return chartsync.ParseId(clientIdStr)
	}
	return chartsync.Id{}, nil
}
