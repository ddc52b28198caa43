package room

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	RoomId        string
	ParticipantId string
}

func (s *service) generateJWT(roomId, participantId string) (string, error) {
	claims := jwt.MapClaims{
		"room_id":        roomId,
		"participant_id": participantId,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(s.cfg.Secret))
}

func (s *service) parseJWT(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	roomId, _ := claims["room_id"].(string)
	participantId, _ := claims["participant_id"].(string)
	if roomId == "" || participantId == "" {
		return nil, errors.New("invalid token claims")
	}

	return &Claims{
		RoomId:        roomId,
		ParticipantId: participantId,
	}, nil
}
