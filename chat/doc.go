// Package chat contains the Twitch chat listener used by the song-request bot.
//
// Listener connects to Twitch IRC for a single channel (TWITCH_CHANNEL) as the
// bot account (TWITCH_BOT_USERNAME / TWITCH_OAUTH_TOKEN), hands every chat
// message to the registered handler, and sends replies back with Say.
//
// Credentials: the IRC client requires a user OAuth token with chat:read and
// chat:edit scopes, in the "oauth:<token>" form Twitch chat expects. The
// prefix is added when missing.
package chat
