package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// AWSLister lists running EC2 instances carrying a tag.
type AWSLister struct {
	client   *ec2.Client
	tagKey   string
	tagValue string
	logger   *slog.Logger
}

// NewAWSLister creates a lister for instances tagged tagKey=tagValue in region.
func NewAWSLister(accessKeyID, secretAccessKey, region, tagKey, tagValue, endpoint string, logger *slog.Logger) *AWSLister {
	opts := ec2.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return &AWSLister{
		client:   ec2.New(opts),
		tagKey:   tagKey,
		tagValue: tagValue,
		logger:   logger.With("provider", "aws"),
	}
}

// describeInput builds the DescribeInstances filter for the tag selector.
func (l *AWSLister) describeInput() *ec2.DescribeInstancesInput {
	return &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:" + l.tagKey), Values: []string{l.tagValue}},
			{Name: aws.String("instance-state-name"), Values: []string{"running"}},
		},
	}
}

// ListHosts returns the public IPv4 address of every matching instance.
// Instances without a public address are skipped.
func (l *AWSLister) ListHosts(ctx context.Context) ([]string, error) {
	var hosts []string

	paginator := ec2.NewDescribeInstancesPaginator(l.client, l.describeInput())
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}
		for _, res := range out.Reservations {
			for _, inst := range res.Instances {
				ip := aws.ToString(inst.PublicIpAddress)
				if ip == "" {
					l.logger.Warn("instance has no public IP", "instance_id", aws.ToString(inst.InstanceId))
					continue
				}
				hosts = append(hosts, ip)
			}
		}
	}
	return hosts, nil
}
