package control

import (
	"time"

	fiber "github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v5"
)

func (s *Server) createToken(user string, timeNow time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user": user,
		"exp":  timeNow.Add(s.config.signInExpire()).Unix(),
	})
	return token.SignedString([]byte(s.loginKey))
}

func (s *Server) loginHandler(c *fiber.Ctx) error {
	user := c.FormValue("user")
	pass := c.FormValue("password")
	timeNow := time.Now()
	if !s.config.validUser(user, pass) {
		s.loginLogger.Printf("%s,unauthorized,%s,%s,%s\r\n", formattedTimestamp(timeNow), user, c.IP(), c.IPs())
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	t, err := s.createToken(user, timeNow)
	if err != nil {
		s.loginLogger.Printf("%s,error,%s,%s,%s\r\n", formattedTimestamp(timeNow), user, c.IP(), c.IPs())
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	s.loginLogger.Printf("%s,success,%s,%s,%s\r\n", formattedTimestamp(timeNow), user, c.IP(), c.IPs())
	return c.JSON(fiber.Map{"token": t})
}

// tokenFromQuery lets browsers pass the token on websocket upgrades
func tokenFromQuery(c *fiber.Ctx) error {
	if token := c.Query("token"); token != "" && len(c.Get(fiber.HeaderAuthorization)) == 0 {
		c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return c.Next()
}

func (s *Server) loginMiddleware() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: []byte(s.loginKey),
		SuccessHandler: func(c *fiber.Ctx) error {
			s.accessLogger.Printf("%s,access,%s,%s,%s\r\n", formattedTimestamp(time.Now()), c.Path(), c.IP(), c.IPs())
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, e error) error {
			s.accessLogger.Printf("%s,%s,%s,%s,%s\r\n", formattedTimestamp(time.Now()), e, c.Path(), c.IP(), c.IPs())
			return c.SendStatus(fiber.StatusUnauthorized)
		},
	})
}

func formattedTimestamp(t time.Time) string {
	return t.Format("03:04:05 PM 01-02-2006")
}
