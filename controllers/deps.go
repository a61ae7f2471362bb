package controllers

import "newsletter-backend/email"

// Mailer is the shared outbound email client, set once at startup.
var Mailer *email.Client

func UseMailer(m *email.Client) { Mailer = m }
