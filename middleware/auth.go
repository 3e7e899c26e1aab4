package middleware

import (
	"github.com/charmbracelet/wish"
	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/util"
	"github.com/charmbracelet/ssh"
	"log"
)

// AuthMiddleware maps the SSH public key to a local account, creating
// one with a random handle on first contact.
func AuthMiddleware() wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			database := db.GetDB()
			_, found := database.ReadAccBySession(s)

			if found != nil {
				util.LogPublicKey(s)
			} else {
				err, created := database.CreateAccount(s, util.RandomString(10))
				if err != nil {
					log.Fatalln("Could not create a user: ", err)
				}
				if !created {
					log.Fatalln("The user is still empty!")
				}
				util.LogPublicKey(s)
			}
			h(s)
		}
	}
}
