package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		PhoneNumberID: "111222333",
		AccessToken:   "EAAtoken",
		VerifyToken:   "verify-me",
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	missingPhone := validConfig()
	missingPhone.PhoneNumberID = ""
	assert.Error(t, missingPhone.Validate())

	missingToken := validConfig()
	missingToken.AccessToken = ""
	assert.Error(t, missingToken.Validate())

	missingVerify := validConfig()
	missingVerify.VerifyToken = ""
	assert.Error(t, missingVerify.Validate())
}

func TestChannelCanReceive(t *testing.T) {
	ch := &Channel{Config: validConfig(), IsActive: true}
	assert.True(t, ch.CanReceive())

	ch.IsActive = false
	assert.False(t, ch.CanReceive())
}
