package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/civica/membership-backend/internal/config"
	"github.com/civica/membership-backend/internal/model"
	"github.com/civica/membership-backend/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:          "test-secret",
		JWTExpiry:          time.Hour,
		BcryptCost:         4,
		MandateCacheTTL:    time.Minute,
		ExpiryWarningDays:  30,
		ExpiryScanInterval: time.Minute,
	}
}

type serviceFixture struct {
	mr            *miniredis.Miniredis
	rdb           *redis.Client
	members       *testutil.MemberRepo
	mandates      *testutil.MandateRepo
	auth          *AuthService
	memberSvc     *MemberService
	notifications *NotificationService
	mandateSvc    *MandateService
}

func newServiceFixture(t *testing.T, today string, mandates ...model.RoleMandate) *serviceFixture {
	t.Helper()
	cfg := testConfig()
	mr, rdb := testutil.NewRedis(t)
	log := zerolog.Nop()

	f := &serviceFixture{
		mr:  mr,
		rdb: rdb,
		members: testutil.NewMemberRepo(model.Member{
			ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.org", Role: model.RolePresident,
		}),
		mandates: testutil.NewMandateRepo(mandates...),
		auth:     NewAuthService(cfg),
	}
	f.memberSvc = NewMemberService(f.members, f.auth)
	f.notifications = NewNotificationService(rdb, cfg, log)
	f.notifications.now = func() time.Time { return model.MustParseDate(today).Time().Add(9 * time.Hour) }
	f.mandateSvc = NewMandateService(f.mandates, f.members, f.notifications, rdb, cfg, log)
	return f
}

var mandateFixture = testutil.Mandate
